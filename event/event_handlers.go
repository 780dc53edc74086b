package event

import (
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"
)

// EventHandler reacts to a committed audit event, a nil result means the event is none of its concern.
type EventHandler func(e *EventRecord) *EventHandleResult

type EventHandleResult struct {
	Success           bool
	Message           string
	HandlerIdentifier string
}

var (
	EventHandlers      []EventHandler
	InvokeHandlersFunc = invokeHandlers
)

// RegisterHandlers appends handlers. Call it before the first request is served.
func RegisterHandlers(handlers ...EventHandler) {
	EventHandlers = append(EventHandlers, handlers...)
}

// invokeHandlers runs every handler in registration order.
// A failing or panicking handler is logged and never reaches the caller.
func invokeHandlers(record *EventRecord) []EventHandleResult {
	results := []EventHandleResult{}
	for i, handler := range EventHandlers {
		r := handleSafely(i, handler, record)
		if r == nil {
			continue
		}
		results = append(results, *r)

		entry := logrus.WithFields(logrus.Fields{"handler": r.HandlerIdentifier, "eventId": record.ID,
			"entity": record.Entity, "entityId": record.EntityID, "action": record.Action})
		if r.Success {
			entry.Debug("audit event handled")
		} else {
			entry.Warn("audit event handler failed: ", r.Message)
		}
	}
	return results
}

func handleSafely(index int, handler EventHandler, record *EventRecord) (result *EventHandleResult) {
	defer func() {
		if err := recover(); err != nil {
			result = &EventHandleResult{Message: fmt.Sprintf("panic: %v", err), HandlerIdentifier: "handler#" + strconv.Itoa(index)}
		}
	}()
	return handler(record)
}
