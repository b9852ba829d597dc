package amqp

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Routing keys on the import exchange.
const (
	RoutingImportRequest   = "import.request"
	RoutingImportCommitted = "import.committed"
)

// ImportRequestMessage asks a worker to import a spreadsheet range. With
// Commit false the worker only previews and logs the result.
type ImportRequestMessage struct {
	SpreadsheetID string    `json:"spreadsheetId"`
	Range         string    `json:"range"`
	Commit        bool      `json:"commit"`
	RequestedBy   string    `json:"requestedBy,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewImportRequestMessage(spreadsheetID, rng string, commit bool) *ImportRequestMessage {
	return &ImportRequestMessage{
		SpreadsheetID: spreadsheetID,
		Range:         rng,
		Commit:        commit,
		Timestamp:     time.Now(),
	}
}

func (m *ImportRequestMessage) Validate() error {
	if strings.TrimSpace(m.SpreadsheetID) == "" {
		return errors.New("missing spreadsheet id")
	}
	if strings.TrimSpace(m.Range) == "" {
		return errors.New("missing range")
	}
	return nil
}

func (m *ImportRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ImportRequestMessageFromJSON(data []byte) (*ImportRequestMessage, error) {
	var msg ImportRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ImportCommittedMessage announces rows written by an import.
type ImportCommittedMessage struct {
	Source        string    `json:"source"`
	Rows          int       `json:"rows"`
	Duplicates    int       `json:"duplicates"`
	NewCategories int       `json:"newCategories"`
	Years         []int     `json:"years"`
	Timestamp     time.Time `json:"timestamp"`
}

func (m *ImportCommittedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ImportCommittedMessageFromJSON(data []byte) (*ImportCommittedMessage, error) {
	var msg ImportCommittedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
