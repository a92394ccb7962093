// Package intake runs the multi-step meeting setup conversation.
//
// A Flow asks for the topic, the start time, the duration and the platform,
// one prompt at a time, then creates the meeting with the provider for the
// chosen platform. Each flow is keyed by (author, channel) and runs in its own
// goroutine; replies reach it through Manager.Deliver.
//
//	AwaitingTopic -> AwaitingStart -> AwaitingDuration -> AwaitingPlatform
//	    -> Dispatching -> Completed | Failed
//
// Any awaiting state fails the flow on an invalid reply, on the step timeout
// or when the flow context is cancelled.
package intake
