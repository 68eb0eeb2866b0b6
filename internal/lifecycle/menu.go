package lifecycle

// Action identifies what a tray menu entry triggers.
type Action string

const (
	ActionPauseHour     Action = "pause-hour"
	ActionPauseFewHours Action = "pause-few-hours"
	ActionPauseDay      Action = "pause-day"
	ActionResume        Action = "resume"
	ActionConnect       Action = "connect"
	ActionShowIdentity  Action = "show-identity"
	ActionLogout        Action = "logout"
	ActionAbout         Action = "about"
	ActionQuit          Action = "quit"
)

// ItemKind is the shape of a menu entry.
type ItemKind int

const (
	// KindLabel is a disabled, informational entry.
	KindLabel ItemKind = iota
	// KindAction is a clickable entry carrying an Action.
	KindAction
	// KindSubmenu is an entry whose Children are shown on hover.
	KindSubmenu
	// KindSeparator is a visual divider.
	KindSeparator
)

func (k ItemKind) String() string {
	switch k {
	case KindLabel:
		return "label"
	case KindAction:
		return "action"
	case KindSubmenu:
		return "submenu"
	case KindSeparator:
		return "separator"
	default:
		return "unknown"
	}
}

// MenuItem is a single entry of a Menu.
type MenuItem struct {
	Kind     ItemKind
	Label    string
	Action   Action
	Children []MenuItem
}

// Menu is an ordered tray menu description, derived from a State.
type Menu []MenuItem

// Menu labels.
const (
	LabelPaused        = "OSC: Paused"
	LabelResume        = "Resume OSC"
	LabelContributing  = "OSC: Contributing..."
	LabelPause         = "Pause OSC"
	LabelPauseHour     = "for an hour"
	LabelPauseFewHours = "for a few hours"
	LabelPauseDay      = "for a day"
	LabelConnect       = "Connect Citizen Identity..."
	LabelCitizenPrefix = "Citizen "
	LabelLogout        = "Log out"
	LabelAbout         = "About OSC"
	LabelQuit          = "Quit"
)

func label(text string) MenuItem {
	return MenuItem{Kind: KindLabel, Label: text}
}

func action(text string, a Action) MenuItem {
	return MenuItem{Kind: KindAction, Label: text, Action: a}
}

func separator() MenuItem {
	return MenuItem{Kind: KindSeparator}
}

// BuildMenu returns the tray menu for st. It has no side effects.
func BuildMenu(st State) Menu {
	menu := make(Menu, 0, 10)

	if st.Paused {
		menu = append(menu,
			label(LabelPaused),
			action(LabelResume, ActionResume),
		)
	} else {
		menu = append(menu,
			label(LabelContributing),
			MenuItem{
				Kind:  KindSubmenu,
				Label: LabelPause,
				Children: []MenuItem{
					action(LabelPauseHour, ActionPauseHour),
					action(LabelPauseFewHours, ActionPauseFewHours),
					action(LabelPauseDay, ActionPauseDay),
				},
			},
		)
	}

	menu = append(menu, separator())

	if st.Recognized && st.Identity != "" {
		menu = append(menu,
			action(LabelCitizenPrefix+st.Identity, ActionShowIdentity),
			action(LabelLogout, ActionLogout),
		)
	} else {
		menu = append(menu, action(LabelConnect, ActionConnect))
	}

	menu = append(menu,
		separator(),
		action(LabelAbout, ActionAbout),
		separator(),
		action(LabelQuit, ActionQuit),
	)

	return menu
}
