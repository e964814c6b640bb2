// Package faces defines the face record shared by the cache, the cluster
// engine, and the organizer.
package faces

// Record is one detected face. Records are immutable once created: the
// pipeline builds them from detections (or rehydrates them from the cache)
// and hands ownership to the cluster run that consumes them.
type Record struct {
	ImagePath string    `json:"image_path"`
	Box       [4]int    `json:"box"` // x1, y1, x2, y2 in original pixels
	Embedding []float32 `json:"embedding"`
	Quality   float64   `json:"quality"` // box area relative to image area
}

// BoxQuality computes the quality score for a bounding box: the fraction of
// the image area it covers. Tiny faces produce unreliable embeddings and are
// filtered by the pipeline's quality floor.
func BoxQuality(box [4]int, imgWidth, imgHeight int) float64 {
	if imgWidth <= 0 || imgHeight <= 0 {
		return 0
	}
	w := box[2] - box[0]
	h := box[3] - box[1]
	if w <= 0 || h <= 0 {
		return 0
	}
	return float64(w*h) / float64(imgWidth*imgHeight)
}
