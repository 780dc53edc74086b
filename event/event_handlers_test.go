package event_test

import (
	"docflow/event"
	"testing"
	"time"

	"github.com/fundwit/go-commons/types"
	. "github.com/onsi/gomega"
)

func TestInvokeHandlers(t *testing.T) {
	RegisterTestingT(t)
	origin := event.EventHandlers
	defer func() { event.EventHandlers = origin }()

	t.Run("should invoke all registered event handlers", func(t *testing.T) {
		var handled []types.ID
		event.EventHandlers = []event.EventHandler{
			func(e *event.EventRecord) *event.EventHandleResult {
				handled = append(handled, e.ID)
				return nil
			},
			func(e *event.EventRecord) *event.EventHandleResult {
				return &event.EventHandleResult{Success: true, Message: "success", HandlerIdentifier: "all-success-handler"}
			},
			func(e *event.EventRecord) *event.EventHandleResult {
				return &event.EventHandleResult{Success: false, Message: "failure", HandlerIdentifier: "all-failure-handler"}
			},
		}

		ev := event.EventRecord{
			ID: 99,
			Event: event.Event{
				Entity: event.EntityStep, EntityID: 1234, Action: event.ActionStepDecided,
				Details: event.Details{"result": "approved"}, ActorID: 333, ActorName: "user333",
			},
			Timestamp: types.TimestampOfDate(2021, 1, 1, 12, 12, 12, 0, time.Local),
		}

		ret := event.InvokeHandlersFunc(&ev)
		Expect(ret).To(Equal([]event.EventHandleResult{
			{Success: true, Message: "success", HandlerIdentifier: "all-success-handler"},
			{Success: false, Message: "failure", HandlerIdentifier: "all-failure-handler"},
		}))
		Expect(handled).To(Equal([]types.ID{99}))

		event.Dispatch([]*event.EventRecord{&ev, &ev})
		Expect(handled).To(Equal([]types.ID{99, 99, 99}))
	})

	t.Run("should turn a panicking handler into a failed result", func(t *testing.T) {
		var handled int
		event.EventHandlers = nil
		event.RegisterHandlers(
			func(e *event.EventRecord) *event.EventHandleResult {
				panic("index unavailable")
			},
			func(e *event.EventRecord) *event.EventHandleResult {
				handled++
				return &event.EventHandleResult{Success: true, HandlerIdentifier: "counter"}
			},
		)

		ev := event.EventRecord{ID: 7, Event: event.Event{Entity: event.EntityInstance, EntityID: 1, Action: event.ActionWorkflowCompleted}}
		ret := event.InvokeHandlersFunc(&ev)
		Expect(ret).To(Equal([]event.EventHandleResult{
			{Success: false, Message: "panic: index unavailable", HandlerIdentifier: "handler#0"},
			{Success: true, HandlerIdentifier: "counter"},
		}))
		Expect(handled).To(Equal(1))
	})
}
