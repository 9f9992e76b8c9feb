package pipeline

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kylev/reelsweep/internal/ffmpeg"
)

// Prompter covers the two interactive moments in a run: the one-time
// geometry choice per new input, and the pause while the operator sorts
// clips into folders.
type Prompter interface {
	ChooseGeometry(input string) (ffmpeg.Geometry, error)
	AwaitSorted(clipsDir string) error
}

// ConsolePrompter reads operator answers from a terminal.
type ConsolePrompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewConsolePrompter prompts on stdin/stdout
func NewConsolePrompter() *ConsolePrompter {
	return &ConsolePrompter{in: bufio.NewReader(os.Stdin), out: os.Stdout}
}

// ChooseGeometry asks for the display aspect ratio once per input. The
// answer is persisted by the caller so resumes never re-prompt.
func (p *ConsolePrompter) ChooseGeometry(input string) (ffmpeg.Geometry, error) {
	fmt.Fprintf(p.out, "\nSpecify the display aspect ratio for %s:\n", input)
	fmt.Fprintln(p.out, "   A) 4:3")
	fmt.Fprintln(p.out, "   B) Anamorphic 16:9")

	for {
		fmt.Fprint(p.out, "Enter choice (A/B): ")
		line, err := p.in.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read choice: %w", err)
		}
		switch strings.ToUpper(strings.TrimSpace(line)) {
		case "A":
			return ffmpeg.Geometry43, nil
		case "B":
			return ffmpeg.GeometryAnamorphic, nil
		}
		fmt.Fprintln(p.out, "Invalid choice.")
	}
}

// AwaitSorted blocks until the operator has organized the clips
// directory into sub-folders.
func (p *ConsolePrompter) AwaitSorted(clipsDir string) error {
	fmt.Fprintln(p.out, "\nAll scenes have been clipped.")
	fmt.Fprintln(p.out, "Organize them into folders within this directory:")
	fmt.Fprintf(p.out, "   %s\n", clipsDir)
	fmt.Fprint(p.out, "When ready, press ENTER to concatenate each folder into a final video... ")

	_, err := p.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return fmt.Errorf("failed to read confirmation: %w", err)
	}
	fmt.Fprintln(p.out)
	return nil
}
