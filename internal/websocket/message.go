package websocket

import (
	"encoding/json"
	"time"
)

// Message types pushed to dashboard clients
const (
	MessageTypeAlertFired      = "alert_fired"
	MessageTypeReportGenerated = "report_generated"
	MessageTypeSystemStatus    = "system_status"
)

// Topics clients can subscribe to. A client with no subscriptions
// receives everything.
const (
	TopicAlerts  = "alerts"
	TopicReports = "reports"
	TopicSystem  = "system"
)

// Message represents a WebSocket message
type Message struct {
	Type      string                 `json:"type"`
	Topic     string                 `json:"topic,omitempty"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
}

// ToJSON converts the message to JSON bytes
func (m Message) ToJSON() []byte {
	m.Timestamp = time.Now().UTC()
	data, _ := json.Marshal(m)
	return data
}

// AlertFiredMessage creates a message for a triggered alert
func AlertFiredMessage(ruleID, ruleName, metric string, value, threshold float64, severity string) Message {
	return Message{
		Type:  MessageTypeAlertFired,
		Topic: TopicAlerts,
		Data: map[string]interface{}{
			"rule_id":   ruleID,
			"rule_name": ruleName,
			"metric":    metric,
			"value":     value,
			"threshold": threshold,
			"severity":  severity,
		},
	}
}

// ReportGeneratedMessage creates a message for a completed report
func ReportGeneratedMessage(reportID, templateID, templateName, status string) Message {
	return Message{
		Type:  MessageTypeReportGenerated,
		Topic: TopicReports,
		Data: map[string]interface{}{
			"report_id":     reportID,
			"template_id":   templateID,
			"template_name": templateName,
			"status":        status,
		},
	}
}

// SystemStatusMessage creates a message for system status updates
func SystemStatusMessage(status string, details map[string]interface{}) Message {
	return Message{
		Type:  MessageTypeSystemStatus,
		Topic: TopicSystem,
		Data: map[string]interface{}{
			"status":  status,
			"details": details,
		},
	}
}
