package welcome

import (
	"charm.land/lipgloss/v2"

	"github.com/abhisek/techtree/internal/ui/theme"
)

const bannerArt = `
 ████████╗███████╗ ██████╗██╗  ██╗████████╗██████╗ ███████╗███████╗
 ╚══██╔══╝██╔════╝██╔════╝██║  ██║╚══██╔══╝██╔══██╗██╔════╝██╔════╝
    ██║   █████╗  ██║     ███████║   ██║   ██████╔╝█████╗  █████╗
    ██║   ██╔══╝  ██║     ██╔══██║   ██║   ██╔══██╗██╔══╝  ██╔══╝
    ██║   ███████╗╚██████╗██║  ██║   ██║   ██║  ██║███████╗███████╗
    ╚═╝   ╚══════╝ ╚═════╝╚═╝  ╚═╝   ╚═╝   ╚═╝  ╚═╝╚══════╝╚══════╝`

const bannerCompact = "T E C H T R E E"

// RenderBanner returns the banner in the primary color, or a compact
// fallback below 70 columns.
func RenderBanner(width int) string {
	style := lipgloss.NewStyle().
		Foreground(theme.Primary).
		Bold(true)

	if width < 70 {
		return style.Render(bannerCompact)
	}
	return style.Render(bannerArt)
}
