package domain

import "time"

// TaskKind names one logical inference task. Each kind has its own
// ordered provider list, prompt template and timeout.
type TaskKind string

const (
	TaskReceiptOCR      TaskKind = "receipt_ocr"
	TaskLabelOCR        TaskKind = "label_ocr"
	TaskPriceTagOCR     TaskKind = "pricetag_ocr"
	TaskVisionRecognize TaskKind = "vision_recognize"
	TaskClassifyText    TaskKind = "classify_text"
	TaskPriceSearch     TaskKind = "price_search"
	TaskRecipe          TaskKind = "recipe"
	TaskFridgeSummary   TaskKind = "fridge_summary"
)

// InferenceTask is one immutable request against the provider chain.
// Image and Text are alternatives: vision kinds carry Image, text kinds
// carry Text.
type InferenceTask struct {
	Kind    TaskKind
	Image   []byte
	Text    string
	Prompt  string
	Timeout time.Duration
}

// InferenceResult is the structurally valid output of the first
// provider that produced one. Raw keeps the JSON span the fields were
// decoded from so callers can re-decode into a concrete schema.
type InferenceResult struct {
	ProviderID string
	Raw        string
	Fields     map[string]any
	Latency    time.Duration
}
