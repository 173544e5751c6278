package audit

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"time"
)

type signaturePayload struct {
	AuditID    string `json:"auditId"`
	EntityType string `json:"entityType"`
	EntityID   string `json:"entityId"`
	Action     string `json:"action"`
	Actor      string `json:"actor"`
	ActorRole  string `json:"actorRole,omitempty"`
	Reason     string `json:"reason,omitempty"`
	RiskLevel  string `json:"riskLevel"`
	NewValues  string `json:"newValues,omitempty"`
	CreatedAt  string `json:"createdAt"`
}

func buildSignaturePayload(l *Log) signaturePayload {
	p := signaturePayload{
		AuditID:    l.AuditID.String(),
		EntityType: string(l.EntityType),
		EntityID:   l.EntityID,
		Action:     string(l.Action),
		Actor:      l.Actor,
		ActorRole:  l.ActorRole,
		Reason:     l.Reason,
		RiskLevel:  string(l.RiskLevel),
		CreatedAt:  l.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if len(l.NewValues) > 0 {
		p.NewValues = base64.StdEncoding.EncodeToString(l.NewValues)
	}
	return p
}

// Sign generates an HMAC signature for the audit log.
func Sign(l *Log, key []byte) ([]byte, error) {
	data, err := json.Marshal(buildSignaturePayload(l))
	if err != nil {
		return nil, err
	}
	mac := hmac.New(sha256.New, key)
	_, _ = mac.Write(data)
	return mac.Sum(nil), nil
}

// Verify checks the HMAC signature of the audit log.
func Verify(l *Log, key []byte) (bool, error) {
	if len(l.Signature) == 0 {
		return false, nil
	}
	expected, err := Sign(l, key)
	if err != nil {
		return false, err
	}
	return hmac.Equal(expected, l.Signature), nil
}
