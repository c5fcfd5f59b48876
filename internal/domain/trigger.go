package domain

import (
	"errors"
	"fmt"
	"strings"
)

// TriggerActionType tags a cross-service trigger.
type TriggerActionType string

const (
	ActionUpdateStatus       TriggerActionType = "UPDATE_STATUS"
	ActionAssignAgent        TriggerActionType = "ASSIGN_AGENT"
	ActionNotifyStatusUpdate TriggerActionType = "NOTIFY_STATUS_UPDATE"
)

var triggerActionTypes = []TriggerActionType{
	ActionUpdateStatus,
	ActionAssignAgent,
	ActionNotifyStatusUpdate,
}

// ParseTriggerActionType matches an action tag case-insensitively.
func ParseTriggerActionType(raw string) (TriggerActionType, error) {
	candidate := TriggerActionType(strings.ToUpper(strings.TrimSpace(raw)))
	for _, action := range triggerActionTypes {
		if action == candidate {
			return action, nil
		}
	}
	return "", fmt.Errorf("unknown trigger action %q", raw)
}

// Trigger data keys.
const (
	TriggerDataNewStatus = "newStatus"
	TriggerDataAgentID   = "agentId"
)

var (
	ErrTriggerDataMissing = errors.New("trigger data key missing")
	ErrTriggerDataType    = errors.New("trigger data value is not a string")
)

// TriggerAction is the closed set of decoded inbound trigger actions.
// Only types in this package implement it.
type TriggerAction interface {
	ActionType() TriggerActionType
	isTriggerAction()
}

// UpdateStatusAction moves a request to NewStatus. Err is set when the
// payload could not be decoded and the action must be dropped.
type UpdateStatusAction struct {
	NewStatus RequestStatus
	Raw       any
	Err       error
}

// AssignAgentAction assigns AgentID to the request. Err is set when the
// payload could not be decoded.
type AssignAgentAction struct {
	AgentID string
	Err     error
}

// UnhandledAction carries any action this service does not act on.
type UnhandledAction struct {
	Action string
}

func (UpdateStatusAction) ActionType() TriggerActionType { return ActionUpdateStatus }
func (AssignAgentAction) ActionType() TriggerActionType { return ActionAssignAgent }
func (a UnhandledAction) ActionType() TriggerActionType { return TriggerActionType(a.Action) }

func (UpdateStatusAction) isTriggerAction() {}
func (AssignAgentAction) isTriggerAction() {}
func (UnhandledAction) isTriggerAction() {}

// DecodeTriggerAction turns an inbound action tag and its free-form data
// into a TriggerAction. It never fails: malformed data is reported through
// the variant's Err field.
func DecodeTriggerAction(action string, data map[string]any) TriggerAction {
	actionType, err := ParseTriggerActionType(action)
	if err != nil {
		return UnhandledAction{Action: action}
	}

	switch actionType {
	case ActionUpdateStatus:
		raw, ok := data[TriggerDataNewStatus]
		if !ok {
			return UpdateStatusAction{Err: fmt.Errorf("%w: %s", ErrTriggerDataMissing, TriggerDataNewStatus)}
		}
		str, ok := raw.(string)
		if !ok {
			return UpdateStatusAction{Raw: raw, Err: fmt.Errorf("%w: %s", ErrTriggerDataType, TriggerDataNewStatus)}
		}
		status, err := ParseRequestStatus(str)
		if err != nil {
			return UpdateStatusAction{Raw: raw, Err: err}
		}
		return UpdateStatusAction{NewStatus: status, Raw: raw}
	case ActionAssignAgent:
		raw, ok := data[TriggerDataAgentID]
		if !ok {
			return AssignAgentAction{Err: fmt.Errorf("%w: %s", ErrTriggerDataMissing, TriggerDataAgentID)}
		}
		agentID, ok := raw.(string)
		if !ok {
			return AssignAgentAction{Err: fmt.Errorf("%w: %s", ErrTriggerDataType, TriggerDataAgentID)}
		}
		return AssignAgentAction{AgentID: agentID}
	default:
		return UnhandledAction{Action: string(actionType)}
	}
}
