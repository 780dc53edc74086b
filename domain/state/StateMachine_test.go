package state_test

import (
	"docflow/domain/state"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("StateMachine", func() {
	var (
		stateMachine *state.StateMachine
	)

	BeforeEach(func() {
		stateMachine = state.StepLifecycle
	})

	Describe("StepLifecycle", func() {
		It("should declare all step statuses", func() {
			Expect(stateMachine.States).Should(Equal([]state.Status{
				state.Waiting, state.Pending, state.InProgress, state.Completed, state.Skipped}))
		})
	})

	Describe("AvailableTransitions", func() {
		It("should return transitions out of a status", func() {
			Ω(stateMachine.AvailableTransitions(state.Waiting, "")).Should(Equal([]state.Transition{
				{Name: "promote", From: state.Waiting, To: state.Pending},
				{Name: "skip", From: state.Waiting, To: state.Skipped},
			}))
			Ω(stateMachine.AvailableTransitions(state.Pending, "")).Should(Equal([]state.Transition{
				{Name: "begin", From: state.Pending, To: state.InProgress},
				{Name: "decide", From: state.Pending, To: state.Completed},
				{Name: "skip", From: state.Pending, To: state.Skipped},
			}))
			Ω(len(stateMachine.AvailableTransitions("UNKNOWN", ""))).Should(Equal(0))
		})

		It("should return transitions into a status", func() {
			Ω(stateMachine.AvailableTransitions("", state.Completed)).Should(Equal([]state.Transition{
				{Name: "decide", From: state.Pending, To: state.Completed},
				{Name: "decide", From: state.InProgress, To: state.Completed},
			}))
		})
	})

	Describe("CanTransit", func() {
		It("should allow only the step lifecycle transitions", func() {
			Expect(stateMachine.CanTransit(state.Waiting, state.Pending)).To(BeTrue())
			Expect(stateMachine.CanTransit(state.Waiting, state.Skipped)).To(BeTrue())
			Expect(stateMachine.CanTransit(state.Pending, state.InProgress)).To(BeTrue())
			Expect(stateMachine.CanTransit(state.InProgress, state.Completed)).To(BeTrue())

			Expect(stateMachine.CanTransit(state.Waiting, state.Completed)).To(BeFalse())
			Expect(stateMachine.CanTransit(state.InProgress, state.Pending)).To(BeFalse())
			Expect(stateMachine.CanTransit(state.Completed, state.Pending)).To(BeFalse())
			Expect(stateMachine.CanTransit(state.Skipped, state.Pending)).To(BeFalse())
			Expect(stateMachine.CanTransit("", state.Pending)).To(BeFalse())
		})

		It("should treat completed and skipped as terminal", func() {
			Expect(stateMachine.IsTerminal(state.Completed)).To(BeTrue())
			Expect(stateMachine.IsTerminal(state.Skipped)).To(BeTrue())
			Expect(stateMachine.IsTerminal(state.Pending)).To(BeFalse())
			Expect(stateMachine.IsTerminal(state.InProgress)).To(BeFalse())
		})
	})

	Describe("Sources", func() {
		It("should list the statuses a step can be decided or skipped from", func() {
			Expect(stateMachine.Sources(state.Completed)).To(Equal([]state.Status{state.Pending, state.InProgress}))
			Expect(stateMachine.Sources(state.Skipped)).To(Equal([]state.Status{state.Waiting, state.Pending, state.InProgress}))
			Expect(stateMachine.Sources(state.Waiting)).To(BeEmpty())
		})
	})
})
