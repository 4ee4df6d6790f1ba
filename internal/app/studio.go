// ABOUTME: Interactive studio session driven by the TUI
// ABOUTME: Maps key actions to recording, stop-all, retry and volume changes
package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/greetcast/greetcast-go/internal/ui"
	"github.com/greetcast/greetcast-go/pkg/avsync"
)

// Studio runs the TUI until the user quits or ctx is cancelled
func (a *App) Studio(ctx context.Context, live bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	controls := ui.NewControls()
	prog := ui.Run(controls, a.cfg.Playback.Volume)

	a.SetSyncObserver(func(st avsync.State) {
		msg := ui.StatusMsg{Phase: st.Phase.String(), Session: st.Session, Warning: st.Warning}
		if st.Err != nil {
			msg.Err = st.Err.Error()
		}
		prog.Send(msg)
	})
	defer a.SetSyncObserver(nil)

	tuiDone := make(chan error, 1)
	go func() {
		_, err := prog.Run()
		tuiDone <- err
	}()
	defer prog.Quit()

	events := RecordEvents{
		OnConnected: func(url string) {
			connected := true
			prog.Send(ui.StatusMsg{Connected: &connected, GatewayURL: url})
		},
		OnFrame: func(frames, dropped int, recorded time.Duration, level float64) {
			prog.Send(ui.StatusMsg{Frames: frames, Dropped: dropped, Recorded: recorded, Level: &level})
		},
		OnTranscript: func(role, text string) {
			prog.Send(ui.TranscriptMsg{Role: role, Text: text})
		},
	}

	var rec *Recorder
	recDone := make(chan RecordResult, 1)

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if rec != nil {
				rec.Stop()
			}
			return ctx.Err()

		case err := <-tuiDone:
			if rec != nil {
				rec.Stop()
			}
			return err

		case action := <-controls.Actions:
			switch action {
			case ui.ActionToggleRecord:
				if rec != nil {
					rec.Stop()
					continue
				}
				r, err := a.StartRecording(ctx, RecordOptions{Live: live, Events: events})
				if err != nil {
					a.log.Error("failed to start recording", slog.Any("error", err))
					prog.Send(ui.StatusMsg{Phase: "error", Err: err.Error()})
					continue
				}
				rec = r
				recording := true
				prog.Send(ui.StatusMsg{Recording: &recording})
				go func() {
					res, _ := r.Wait(ctx)
					recDone <- res
				}()

			case ui.ActionStopAll:
				a.StopAll()

			case ui.ActionRetry:
				go func() {
					if _, err := a.Retry(ctx); err != nil && !errors.Is(err, ErrNothingToRetry) {
						a.log.Warn("retry failed", slog.Any("error", err))
					}
				}()

			case ui.ActionQuit:
				if rec != nil {
					rec.Stop()
				}
				return nil
			}

		case res := <-recDone:
			rec = nil
			recording := false
			msg := ui.StatusMsg{Recording: &recording, Connected: &recording}
			if res.Err != nil {
				msg.Phase = "error"
				msg.Err = res.Err.Error()
			}
			prog.Send(msg)

		case change := <-controls.Volume:
			a.SetVolume(change.Volume, change.Muted)

		case <-ticker.C:
			active := a.output.Active()
			prog.Send(ui.StatusMsg{Active: &active})
		}
	}
}
