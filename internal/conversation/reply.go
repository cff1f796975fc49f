package conversation

type AttachmentKind int

const (
	AttachmentImage AttachmentKind = iota + 1
	AttachmentDocument
)

type Attachment struct {
	Kind    AttachmentKind
	Name    string
	Data    []byte
	Caption string
}

type Button struct {
	Label  string
	Action Action
}

// Keyboard is a grid of inline buttons, one slice per row.
type Keyboard struct {
	Rows [][]Button
}

// Reply is one outbound message. MainMenu asks the transport to show the
// persistent main-menu keyboard; it is ignored when Keyboard is set.
type Reply struct {
	Text       string
	Keyboard   *Keyboard
	MainMenu   bool
	Attachment *Attachment
}

func text(s string) Reply { return Reply{Text: s} }

func withMenu(s string) Reply { return Reply{Text: s, MainMenu: true} }
