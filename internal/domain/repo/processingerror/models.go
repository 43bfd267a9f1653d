package processingerror

import "time"

const componentName = "campaign-orchestrator"

type ProcessingError struct {
	ProcessingContext ProcessingContext `json:"processingContext"`
	Sources           Sources           `json:"sources"`
	Reason            Reason            `json:"reason"`
}

type ProcessingContext struct {
	Component Component `json:"component"`
	Time      time.Time `json:"time"`
	Host      string    `json:"host"`
}

type Component struct {
	Name     string `json:"name"`
	Branch   string `json:"branch"`
	Revision string `json:"revision"`
}

type Sources struct {
	Main       Source     `json:"main"`
	Additional []KeyValue `json:"additional"`
}

type Source struct {
	Topic     string `json:"topic"`
	Partition int32  `json:"partition"`
	Offset    int64  `json:"offset"`
	Payload   []byte `json:"payload"`
}

type KeyValue struct {
	Source string `json:"source"`
	Key    string `json:"key"`
	Value  []byte `json:"value"`
}

type Reason struct {
	Category  string `json:"category"`
	Error     string `json:"error"`
	Retryable bool   `json:"retryable"`
}
