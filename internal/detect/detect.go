// Package detect wraps the external face detection capability. The actual
// model runs in an HTTP sidecar; this package only uploads images, scales
// bounding boxes back to original coordinates, and shapes the results.
package detect

import "context"

// Detection is a single detected face as reported by the capability:
// a bounding box in original image pixel coordinates, a fixed-length
// embedding vector, and a detection confidence score.
type Detection struct {
	Box        [4]int // x1, y1, x2, y2
	Embedding  []float32
	Confidence float64
}

// Detector produces zero or more face detections for an image.
// Implementations may be slow (remote model inference); callers are expected
// to parallelize via the worker pool and pass a cancellable context.
type Detector interface {
	Detect(ctx context.Context, imageData []byte) ([]Detection, error)
}

// Model names understood by the sidecar. CNN requires GPU support on the
// sidecar host and is selected via the accelerated config flag.
const (
	ModelHOG = "hog"
	ModelCNN = "cnn"
)
