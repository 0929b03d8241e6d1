// Package resample produces volumes with a different slice spacing by
// linear interpolation between neighbouring slices.
package resample

import (
	"fmt"
	"math"
	"sync"

	"dicomseries/internal/models"
)

// AlongDepth returns a new volume whose slices are targetSpacing mm apart,
// covering the same physical range as vol. Each output slice blends the two
// input slices around it. The work is split across numCores goroutines;
// vol is not modified.
func AlongDepth(vol models.Volume, targetSpacing float64, numCores int) (models.Volume, error) {
	if targetSpacing <= 0 {
		return models.Volume{}, fmt.Errorf("target spacing must be positive, got %g", targetSpacing)
	}
	if vol.Depth == 0 || len(vol.Data) != vol.VoxelCount() {
		return models.Volume{}, fmt.Errorf("volume buffer holds %d samples, expected %d", len(vol.Data), vol.VoxelCount())
	}
	if vol.SpacingZ <= 0 {
		return models.Volume{}, fmt.Errorf("volume spacing must be positive, got %g", vol.SpacingZ)
	}
	if numCores < 1 {
		numCores = 1
	}

	// Calculate the number of output slices spanning the input range
	span := float64(vol.Depth-1) * vol.SpacingZ
	depth := int(math.Floor(span/targetSpacing+1e-9)) + 1
	if vol.Depth == 1 {
		depth = 1
	}

	sliceLen := vol.Width * vol.Height
	data := make([]float64, sliceLen*depth)

	var wg sync.WaitGroup
	slicesPerCore := (depth + numCores - 1) / numCores

	for c := 0; c < numCores; c++ {
		start := c * slicesPerCore
		end := min((c+1)*slicesPerCore, depth)
		if start >= end {
			break
		}

		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()

			for k := start; k < end; k++ {
				// Fractional input slice index for this output slice
				z := float64(k) * targetSpacing / vol.SpacingZ
				i := int(math.Floor(z))
				if i >= vol.Depth-1 {
					i = max(vol.Depth-2, 0)
				}
				t := math.Min(z-float64(i), 1)

				dst := data[k*sliceLen : (k+1)*sliceLen]
				lower := vol.SliceData(i)
				if vol.Depth == 1 || t <= 0 {
					copy(dst, lower)
					continue
				}
				upper := vol.SliceData(i + 1)
				for p := range dst {
					// Linear interpolation
					dst[p] = (1-t)*lower[p] + t*upper[p]
				}
			}
		}(start, end)
	}

	// Wait for all cores to finish
	wg.Wait()

	return vol.WithData(data, depth, targetSpacing), nil
}
