package types

// Bounds is a pixel rectangle on the source image.
type Bounds struct {
	X0 int `json:"x0"`
	Y0 int `json:"y0"`
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
}

// Word is a single recognized token with its engine confidence (0-100).
type Word struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Bounds     Bounds  `json:"bounds"`
}

type Line struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Bounds     Bounds  `json:"bounds"`
}

// RecognitionResult is the raw OCR output for one job. Words are in reading
// order and their texts appear in RawText in that order.
type RecognitionResult struct {
	RawText    string  `json:"rawText"`
	Confidence float64 `json:"confidence"`
	Words      []Word  `json:"words"`
	Lines      []Line  `json:"lines"`
}
