// Package bot runs one controller per installed team.
//
// A Controller consumes its transport's event stream. Each inbound message
// is first offered to the user's active dialogue session; if none is
// waiting on that channel, the message is classified (direct message,
// direct mention, mention, ambient) and dispatched through the intent
// router. The handlers in this package carry all of the bot's
// conversational copy: the link-share confirm flow, the installer flow,
// and the settings commands.
//
// The Registry owns controller lifecycle: ResumeAll at startup, Spawn on
// each new install.
package bot
