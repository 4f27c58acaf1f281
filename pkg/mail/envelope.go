// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package mail

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Envelope is the payload accepted by the mail-delivery service. The service
// substitutes PlaceholderValues into MailBodyAsString before sending.
type Envelope struct {
	AttachmentURL     string            `json:"attachmentUrl"`
	From              string            `json:"from"`
	MailBodyAsString  string            `json:"mailBodyAsString"`
	PlaceholderValues map[string]string `json:"placeholderValues"`
	Subject           string            `json:"subject"`
	To                []string          `json:"to"`
}

// Encode serialises the envelope as JSON without HTML escaping, so rendered
// bodies reach the mail service byte for byte.
func (e Envelope) Encode() ([]byte, error) {
	if e.PlaceholderValues == nil {
		e.PlaceholderValues = map[string]string{}
	}
	if e.To == nil {
		e.To = []string{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(e); err != nil {
		return nil, fmt.Errorf("failed to encode mail envelope: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
