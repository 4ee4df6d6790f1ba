// ABOUTME: greetcast subcommands
// ABOUTME: record, say, create, list, play, delete and version
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/greetcast/greetcast-go/internal/app"
	"github.com/greetcast/greetcast-go/internal/version"
	"github.com/greetcast/greetcast-go/pkg/audio/codec"
	"github.com/spf13/cobra"
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record from the microphone, optionally talking to the live speech service",
	RunE: func(cmd *cobra.Command, args []string) error {
		duration, _ := cmd.Flags().GetDuration("duration")
		live, _ := cmd.Flags().GetBool("live")
		clip, _ := cmd.Flags().GetString("clip")

		ctx := cmd.Context()
		tui := !noTUI
		s, err := startSession(ctx, tui)
		if err != nil {
			return err
		}
		defer s.Close()

		if tui {
			return s.app.Studio(ctx, live)
		}

		r, err := s.app.StartRecording(ctx, app.RecordOptions{
			Duration: duration,
			Live:     live,
			ClipPath: clip,
			Events: app.RecordEvents{
				OnTranscript: func(role, text string) {
					fmt.Printf("%s: %s\n", role, text)
				},
			},
		})
		if err != nil {
			return err
		}

		res, err := r.Wait(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("Recorded %v (%d frames, %d dropped)\n", res.Duration.Round(time.Millisecond), res.Frames, res.Dropped)
		if res.Transcript != "" {
			fmt.Printf("Transcript: %s\n", res.Transcript)
		}
		if res.Err != nil {
			return fmt.Errorf("session ended with error: %w", res.Err)
		}
		return nil
	},
}

var sayCmd = &cobra.Command{
	Use:   "say <text>",
	Short: "Synthesize text and play it",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		voice, _ := cmd.Flags().GetString("voice")

		s, err := startSession(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer s.Close()

		return s.app.Say(cmd.Context(), strings.Join(args, " "), voice)
	},
}

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create and store a voiced greeting",
	RunE: func(cmd *cobra.Command, args []string) error {
		occasion, _ := cmd.Flags().GetString("occasion")
		message, _ := cmd.Flags().GetString("message")
		details, _ := cmd.Flags().GetString("details")
		voice, _ := cmd.Flags().GetString("voice")
		image, _ := cmd.Flags().GetString("image")
		withVideo, _ := cmd.Flags().GetBool("video")

		if occasion == "" {
			return fmt.Errorf("--occasion is required")
		}

		req := app.CreateRequest{
			Occasion:  occasion,
			Message:   message,
			Details:   details,
			Voice:     voice,
			WithVideo: withVideo,
		}
		if image != "" {
			data, err := os.ReadFile(image)
			if err != nil {
				return fmt.Errorf("read image: %w", err)
			}
			req.Image = codec.EncodeBytes(data)
			req.ImageMimeType = imageMimeType(image)
			req.ImageRef = image
		}

		s, err := startSession(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer s.Close()

		rec, err := s.app.Create(cmd.Context(), req)
		if err != nil {
			return err
		}

		fmt.Printf("Created greeting %s\n", rec.ID)
		fmt.Printf("  %s\n", rec.Message)
		if rec.VideoRef != "" {
			fmt.Printf("  video: %s\n", rec.VideoRef)
		}
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored greetings, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		s, err := startSession(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer s.Close()

		recs, err := s.app.List(cmd.Context(), limit)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tCREATED\tOCCASION\tVIDEO\tMESSAGE")
		for _, rec := range recs {
			hasVideo := "no"
			if rec.VideoRef != "" {
				hasVideo = "yes"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				rec.ID, rec.CreatedAt.Local().Format(time.DateTime), rec.Occasion, hasVideo, truncate(rec.Message, 40))
		}
		return w.Flush()
	},
}

var playCmd = &cobra.Command{
	Use:   "play <id>",
	Short: "Play a stored greeting with its video",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := startSession(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer s.Close()

		st, err := s.app.Play(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if st.Warning != "" {
			fmt.Printf("Warning: %s\n", st.Warning)
		}
		if st.Err != nil {
			return fmt.Errorf("playback failed: %w (run play again to retry)", st.Err)
		}
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a stored greeting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := startSession(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.app.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted greeting %s\n", args[0])
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.String())
	},
}

func init() {
	recordCmd.Flags().Duration("duration", 0, "Stop recording after this long (0 records until interrupted)")
	recordCmd.Flags().Bool("live", true, "Stream to the live speech service")
	recordCmd.Flags().String("clip", "", "Save the recording to this WAV file")

	sayCmd.Flags().String("voice", "", "Voice name (default from config)")

	createCmd.Flags().String("occasion", "", "Occasion, e.g. birthday")
	createCmd.Flags().String("message", "", "Greeting text (drafted automatically when empty)")
	createCmd.Flags().String("details", "", "Details used when drafting the message")
	createCmd.Flags().String("voice", "", "Voice name (default from config)")
	createCmd.Flags().String("image", "", "Image file to animate")
	createCmd.Flags().Bool("video", false, "Generate a greeting video")

	listCmd.Flags().Int("limit", 20, "Maximum greetings to list")
}

func imageMimeType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	default:
		return "image/png"
	}
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}
