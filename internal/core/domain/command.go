package domain

import (
	"strings"

	"github.com/google/uuid"
)

type CommandKind int

const (
	// CommandBroadcast fans the text out to every member of the sender's room.
	CommandBroadcast CommandKind = iota
	// CommandWhisper delivers the text to a single addressed session.
	CommandWhisper
	// CommandReserved is the moderation prefix, parsed but not acted on.
	CommandReserved
)

// Command is the parsed form of an inbound text payload.
type Command struct {
	Kind   CommandKind
	Target uuid.UUID
}

// ParseCommand classifies a text payload once, before dispatch. A "/w"
// prefix makes the second whitespace-delimited token the target id; a
// "/k" prefix is reserved; everything else is a room broadcast. The
// payload itself is always delivered verbatim, prefix included.
func ParseCommand(text string) (Command, error) {
	switch {
	case strings.HasPrefix(text, "/w"):
		parts := strings.Split(text, " ")
		if len(parts) < 2 || parts[1] == "" {
			return Command{}, ErrWhisperTargetMissing
		}
		target, err := uuid.Parse(parts[1])
		if err != nil {
			return Command{}, ErrWhisperTargetInvalid
		}
		return Command{Kind: CommandWhisper, Target: target}, nil
	case strings.HasPrefix(text, "/k"):
		return Command{Kind: CommandReserved}, nil
	default:
		return Command{Kind: CommandBroadcast}, nil
	}
}
