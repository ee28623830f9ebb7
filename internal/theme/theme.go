package theme

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/forgehttp/forge/internal/request"
	"github.com/forgehttp/forge/internal/vars"
)

type MethodColors struct {
	GET     lipgloss.Color
	POST    lipgloss.Color
	PUT     lipgloss.Color
	PATCH   lipgloss.Color
	DELETE  lipgloss.Color
	HEAD    lipgloss.Color
	OPTIONS lipgloss.Color
	Default lipgloss.Color
}

// PlaceholderColors style {{name}} spans in a display resolution.
type PlaceholderColors struct {
	Resolved   lipgloss.Style
	Unresolved lipgloss.Style
	Secret     lipgloss.Style
}

type Theme struct {
	AppFrame       lipgloss.Style
	Header         lipgloss.Style
	HeaderBrand    lipgloss.Style
	HeaderValue    lipgloss.Style
	EnvBadge       lipgloss.Style
	MethodBadge    lipgloss.Style
	URLPreview     lipgloss.Style
	ResponseBorder lipgloss.Style
	StatusBar      lipgloss.Style
	Tabs           lipgloss.Style
	TabActive      lipgloss.Style
	TabInactive    lipgloss.Style
	Muted          lipgloss.Style
	Error          lipgloss.Style
	Success        lipgloss.Style
	Warn           lipgloss.Style
	DiffAdded      lipgloss.Style
	DiffRemoved    lipgloss.Style
	DiffHunk       lipgloss.Style
	MethodColors   MethodColors
	Placeholders   PlaceholderColors
}

func DefaultTheme() Theme {
	accent := lipgloss.Color("#7D56F4")
	base := lipgloss.NewStyle().Foreground(lipgloss.Color("#dcd7ff"))
	return Theme{
		AppFrame: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#403B59")),
		Header: lipgloss.NewStyle().Foreground(lipgloss.Color("#E5E1FF")).Padding(0, 1),
		HeaderBrand: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#1A1020")).
			Background(lipgloss.Color("#FBC859")).
			Bold(true).
			Padding(0, 1),
		HeaderValue: lipgloss.NewStyle().Foreground(lipgloss.Color("#D1CFF6")),
		EnvBadge: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#0D2C3D")).
			Bold(true).
			Padding(0, 1),
		MethodBadge: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#0F111A")).
			Bold(true).
			Padding(0, 1),
		URLPreview: lipgloss.NewStyle().Foreground(lipgloss.Color("#A6A1BB")),
		ResponseBorder: base.BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#5FB3B3")),
		StatusBar: lipgloss.NewStyle().Foreground(lipgloss.Color("#A6A1BB")).Padding(0, 1),
		Tabs:      lipgloss.NewStyle().Foreground(lipgloss.Color("#A6A1BB")).Padding(0, 1),
		TabActive: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FDFBFF")).
			Background(accent).
			Bold(true).
			Padding(0, 2),
		TabInactive: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#5E5A72")).
			Padding(0, 1),
		Muted:       lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6A86")),
		Error:       lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6E6E")),
		Success:     lipgloss.NewStyle().Foreground(lipgloss.Color("#6EF17E")),
		Warn:        lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB61E")),
		DiffAdded:   lipgloss.NewStyle().Foreground(lipgloss.Color("#6EF17E")),
		DiffRemoved: lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6E6E")),
		DiffHunk:    lipgloss.NewStyle().Foreground(lipgloss.Color("#56A9DD")),
		MethodColors: MethodColors{
			GET:     lipgloss.Color("#34d399"),
			POST:    lipgloss.Color("#60a5fa"),
			PUT:     lipgloss.Color("#f59e0b"),
			PATCH:   lipgloss.Color("#14b8a6"),
			DELETE:  lipgloss.Color("#f87171"),
			HEAD:    lipgloss.Color("#a1a1aa"),
			OPTIONS: lipgloss.Color("#c084fc"),
			Default: lipgloss.Color("#9ca3af"),
		},
		Placeholders: PlaceholderColors{
			Resolved:   lipgloss.NewStyle().Foreground(lipgloss.Color("#34d399")),
			Unresolved: lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6E6E")).Underline(true),
			Secret:     lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB61E")),
		},
	}
}

func (c MethodColors) For(m request.Method) lipgloss.Color {
	switch m {
	case request.MethodGet:
		return c.GET
	case request.MethodPost:
		return c.POST
	case request.MethodPut:
		return c.PUT
	case request.MethodPatch:
		return c.PATCH
	case request.MethodDelete:
		return c.DELETE
	case request.MethodHead:
		return c.HEAD
	case request.MethodOptions:
		return c.OPTIONS
	default:
		return c.Default
	}
}

func (p PlaceholderColors) For(s vars.Status) lipgloss.Style {
	switch s {
	case vars.StatusSecret:
		return p.Secret
	case vars.StatusUnresolved:
		return p.Unresolved
	default:
		return p.Resolved
	}
}
