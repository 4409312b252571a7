package model

// Subtask is one proposed piece of a split request.
type Subtask struct {
	Title       string `json:"title" validate:"required,max=255"`
	Description string `json:"description" validate:"required"`
}

// RequestSplitResult is the sizing advisor's verdict on a proposed request.
type RequestSplitResult struct {
	IsTooBig   bool      `json:"isTooBig"`
	Reasoning  string    `json:"reasoning"`
	Subtasks   []Subtask `json:"subtasks"`
	Suggestion string    `json:"suggestion"`
}

// SizeAssessment is a split result annotated with the stage that produced it.
// QuickCheck is true when the heuristic alone cleared the request.
type SizeAssessment struct {
	RequestSplitResult
	QuickCheck bool `json:"quickCheck"`
}

// AnalyzeInput is the input to the sizing endpoints.
type AnalyzeInput struct {
	Title       string `json:"title" validate:"required,max=255"`
	Description string `json:"description" validate:"required"`
}

// SubmitInput is a request submission after sizing. Confirmed subtasks, if
// any, replace the original request.
type SubmitInput struct {
	Title       string    `json:"title" validate:"required,max=255"`
	Description string    `json:"description" validate:"required"`
	Priority    *int      `json:"priority,omitempty" validate:"omitempty,min=1,max=5"`
	Subtasks    []Subtask `json:"subtasks,omitempty" validate:"omitempty,dive"`
}
