package commands

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/danieledinun/aitreon-sub001/pkg/cli"
	"github.com/danieledinun/aitreon-sub001/pkg/voicecall"
)

// callUI renders session callbacks as styled terminal lines. Callbacks
// arrive on the session loop, so every print path takes the mutex and
// returns quickly.
//
// Interim transcription is shown on a single live line that is cleared
// before any finalized line is printed.
type callUI struct {
	styles    cli.Styles
	userID    string
	creatorID string

	mu      sync.Mutex
	liveLen int
	reason  voicecall.EndReason
}

func newCallUI(userID, creatorID string) *callUI {
	return &callUI{
		styles:    cli.NewStyles(cli.DefaultTheme),
		userID:    userID,
		creatorID: creatorID,
		reason:    voicecall.EndReasonUserHangup,
	}
}

// printLine clears the live interim line and prints s on its own line.
func (u *callUI) printLine(s string) {
	u.clearLiveLocked()
	fmt.Println(s)
}

func (u *callUI) clearLiveLocked() {
	if u.liveLen > 0 {
		fmt.Print("\r" + strings.Repeat(" ", u.liveLen) + "\r")
		u.liveLen = 0
	}
}

func (u *callUI) connecting(room string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.printLine(u.styles.Title.Render("aitreon-call") + " " +
		u.styles.Help.Render("calling "+u.creatorID+" (room "+room+")"))
}

func (u *callUI) connected() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.printLine(u.styles.Label.Render("connected") + " " +
		u.styles.Help.Render("press Ctrl+C to hang up"))
}

func (u *callUI) phase(p voicecall.Phase) {
	u.mu.Lock()
	defer u.mu.Unlock()
	name := p.String()
	u.printLine(u.styles.Phase(name).Render("● " + name))
}

func (u *callUI) transcription(entry voicecall.TranscriptionEntry) {
	u.mu.Lock()
	defer u.mu.Unlock()
	speaker := u.styles.User
	if entry.Speaker != u.userID {
		speaker = u.styles.Agent
	}
	ts := entry.Timestamp.Format("15:04:05")
	u.printLine(u.styles.Help.Render("["+ts+"]") + " " +
		speaker.Render(entry.Speaker+":") + " " + entry.Text)
}

func (u *callUI) currentTranscript(speaker, display string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.clearLiveLocked()
	if display == "" {
		return
	}
	line := u.styles.Interim.Render(display)
	fmt.Print("\r" + line)
	u.liveLen = len(display)
}

func (u *callUI) timeWarning(remaining time.Duration) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.printLine(u.styles.Warn.Render(
		fmt.Sprintf("⏱ %s remaining in this call", cli.FormatClock(remaining))))
}

func (u *callUI) videoDisplay(instr voicecall.VideoInstruction) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.printLine(u.styles.Label.Render("video: ") + instr.Title + " " +
		u.styles.Help.Render(instr.URL))
}

func (u *callUI) disconnected(reason voicecall.EndReason, elapsed time.Duration) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.reason = reason
	style := u.styles.Help
	if reason == voicecall.EndReasonConnectionLost || reason == voicecall.EndReasonError {
		style = u.styles.Error
	}
	u.printLine(style.Render(
		fmt.Sprintf("call ended (%s) after %s", reason, cli.FormatClock(elapsed))))
}

func (u *callUI) connectFailed(cerr *voicecall.ConnectError) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.printLine(u.styles.Error.Render(cerr.UserMessage()))
}

func (u *callUI) journaled(sessionID string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.printLine(u.styles.Help.Render("journaled as " + sessionID +
		" — replay with 'aitreon-call logs show " + sessionID + "'"))
}

func (u *callUI) endReason() voicecall.EndReason {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.reason
}
