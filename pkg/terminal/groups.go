package terminal

type commandGroup uint8

const (
	otherCmds commandGroup = iota
	walkCmds
	memCmds
)

type commandGroupDescription struct {
	description string
	group       commandGroup
}

var commandGroupDescriptions = []commandGroupDescription{
	{"Walking data structures", walkCmds},
	{"Viewing memory, types and symbols", memCmds},
	{"Other commands", otherCmds},
}
