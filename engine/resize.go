package engine

// resizeAreaAverage resizes a row-major BGR24 buffer from (srcH, srcW) to
// (dstH, dstW) by averaging each destination pixel's source rectangle —
// the area-average method §4.3 step 2 requires. dst is always freshly
// allocated and contiguous.
func resizeAreaAverage(src []byte, srcH, srcW, dstH, dstW int) []byte {
	dst := make([]byte, dstH*dstW*3)
	scaleX := float64(srcW) / float64(dstW)
	scaleY := float64(srcH) / float64(dstH)

	for dy := 0; dy < dstH; dy++ {
		sy0 := int(float64(dy) * scaleY)
		sy1 := int(float64(dy+1) * scaleY)
		if sy1 <= sy0 {
			sy1 = sy0 + 1
		}
		if sy1 > srcH {
			sy1 = srcH
		}

		for dx := 0; dx < dstW; dx++ {
			sx0 := int(float64(dx) * scaleX)
			sx1 := int(float64(dx+1) * scaleX)
			if sx1 <= sx0 {
				sx1 = sx0 + 1
			}
			if sx1 > srcW {
				sx1 = srcW
			}

			var sumB, sumG, sumR, count int
			for sy := sy0; sy < sy1; sy++ {
				rowOff := sy * srcW * 3
				for sx := sx0; sx < sx1; sx++ {
					o := rowOff + sx*3
					sumB += int(src[o+0])
					sumG += int(src[o+1])
					sumR += int(src[o+2])
					count++
				}
			}
			o := (dy*dstW + dx) * 3
			if count == 0 {
				continue
			}
			dst[o+0] = byte(sumB / count)
			dst[o+1] = byte(sumG / count)
			dst[o+2] = byte(sumR / count)
		}
	}
	return dst
}
