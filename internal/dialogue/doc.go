// Package dialogue implements scripted multi-turn conversations.
//
// # Overview
//
// A dialogue is a stack of prompts. Each Prompt asks a question and waits
// for the user's reply; Branches match the reply and decide what happens
// next via an Action:
//
//   - Next(): this prompt is done, resume the parent (or finish)
//   - Repeat(): re-ask the same question
//   - Ask(p): push a nested prompt
//   - End(): finish the whole conversation
//
// # Matching
//
// Branches are tried in order and the first match wins. The package ships
// matchers for the common cases:
//
//	dialogue.Yes       // "yes", "yeah", "sure", ...
//	dialogue.No        // "no", "nope", ...
//	dialogue.Contains("channel")
//	dialogue.Pattern(`^#\w+$`)
//	dialogue.Any
//
// A Prompt's Default fires when no branch matches. With no Default either,
// the conversation sends a short clarification and waits again.
//
// # Driving a conversation
//
// Run blocks until the conversation finishes, so it lives on its own
// goroutine. Inbound replies arrive through Deliver, which never blocks;
// the event loop that owns the chat connection calls it and moves on:
//
//	convo := dialogue.New(send)
//	go func() { state, _ := convo.Run(ctx, prompt); ... }()
//	...
//	convo.Deliver(text) // from the event loop
//
// The terminal State is Completed, or Aborted on cancellation or reply
// timeout.
package dialogue
