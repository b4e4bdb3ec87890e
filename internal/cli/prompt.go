package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/ilexum-group/janus/internal/confirm"
	"github.com/ilexum-group/janus/pkg/models"
)

// stagePrompter asks the operator each confirmation stage's question on the
// terminal. The final stage of a high-risk operation requires typing CONFIRM
// in full; everything else is a y/N question.
type stagePrompter struct {
	in          io.Reader
	out         io.Writer
	autoApprove bool

	// reader is created once and survives across stages, so answers piped on
	// stdin ahead of time are not lost to a discarded buffer.
	reader *bufio.Reader
}

// Confirm implements confirm.Prompter.
func (p *stagePrompter) Confirm(stage confirm.Stage, op *models.Operation) (models.ConfirmationResult, error) {
	if p.autoApprove {
		return models.ConfirmationResult{Confirmed: true}, nil
	}

	switch stage {
	case confirm.StageBasic:
		fmt.Fprintf(p.out, "About to run %s on %s (new value: %s).\n", op.Type, targetLabel(op), valueLabel(op))
		return p.askYesNo("Continue?")

	case confirm.StageRisk:
		fmt.Fprintf(p.out, "Risk level: %s\n%s\n", strings.ToUpper(string(op.Risk)), riskWarning(op))
		return p.askYesNo("I understand the risks. Continue?")

	case confirm.StageFinal:
		if op.Risk == models.RiskHigh {
			fmt.Fprintf(p.out, "Final check. Type CONFIRM to apply %s to %s: ", op.Type, targetLabel(op))
			line, err := p.readLine()
			if err != nil {
				return models.ConfirmationResult{}, err
			}
			return models.ConfirmationResult{Confirmed: line == "CONFIRM"}, nil
		}
		return p.askYesNo(fmt.Sprintf("Apply %s to %s now?", op.Type, targetLabel(op)))
	}
	return models.ConfirmationResult{}, fmt.Errorf("unknown confirmation stage %q", stage)
}

func (p *stagePrompter) askYesNo(question string) (models.ConfirmationResult, error) {
	fmt.Fprintf(p.out, "%s [y/N]: ", question)
	line, err := p.readLine()
	if err != nil {
		return models.ConfirmationResult{}, err
	}
	answer := strings.ToLower(line)
	return models.ConfirmationResult{Confirmed: answer == "y" || answer == "yes"}, nil
}

func (p *stagePrompter) readLine() (string, error) {
	if p.reader == nil {
		p.reader = bufio.NewReader(p.in)
	}
	line, err := p.reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func targetLabel(op *models.Operation) string {
	if op.Target != "" {
		return op.Target
	}
	return "this machine"
}

func valueLabel(op *models.Operation) string {
	if op.ProposedValue != "" {
		return op.ProposedValue
	}
	return "generated"
}

// riskWarning describes what can go wrong, per operation type.
func riskWarning(op *models.Operation) string {
	switch op.Type {
	case models.OpModifyMAC:
		return "Changing a MAC address can drop active network connections and may violate local network policy."
	case models.OpModifyGUID:
		return "Changing the machine GUID can break software licensing, domain trust, and installed product activations."
	case models.OpModifyVolumeSerial:
		return "Changing a volume serial rewrites filesystem metadata and can make the volume unbootable."
	default:
		return "This operation permanently alters machine-identifying state."
	}
}
