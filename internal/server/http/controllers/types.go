package controllers

// Request/response bodies for the v1 API.

type nsCreateReq struct {
	Namespace string `json:"namespace"`
}

type createLogReq struct {
	Namespace   string `json:"namespace"`
	Log         string `json:"log"`
	Backing     string `json:"backing"`
	ArraySize   uint64 `json:"arraySize,omitempty"`
	SectionSize uint64 `json:"sectionSize,omitempty"`
}

type createLogResp struct {
	Namespace   string `json:"namespace"`
	Log         string `json:"log"`
	Backing     string `json:"backing"`
	ArraySize   uint64 `json:"arraySize"`
	SectionSize uint64 `json:"sectionSize"`
}

type appendReq struct {
	Namespace string `json:"namespace"`
	Log       string `json:"log"`
	Topic     string `json:"topic"`
	Data      []byte `json:"data"`
	// Position, when set, requests a write at that exact position; a taken
	// slot is a 409. Absent, the server assigns the next position.
	Position *uint64 `json:"position,omitempty"`
}

type appendResp struct {
	Position uint64 `json:"position"`
}

type commitPositionReq struct {
	Namespace string `json:"namespace"`
	Log       string `json:"log"`
	Group     string `json:"group"`
	Position  uint64 `json:"position"`
}

type positionResp struct {
	Group    string `json:"group"`
	Position uint64 `json:"position"`
	Known    bool   `json:"known"`
}
