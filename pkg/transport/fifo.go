// Package transport launches trader executables and plumbs their two
// dedicated FIFOs: one exchange→trader, one trader→exchange. Each trader
// learns its id (and from it, its pipe names) through its single startup
// argument.
package transport

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

const (
	fifoPerm = 0666

	exchangePipeFmt = "/tmp/spx_exchange_%d" // exchange → trader
	traderPipeFmt   = "/tmp/spx_trader_%d"   // trader → exchange
)

// ExchangePipe returns the exchange→trader FIFO path for a trader id.
func ExchangePipe(id int) string { return fmt.Sprintf(exchangePipeFmt, id) }

// TraderPipe returns the trader→exchange FIFO path for a trader id.
func TraderPipe(id int) string { return fmt.Sprintf(traderPipeFmt, id) }

// Process is one running trader executable with both pipe ends open on the
// exchange side.
type Process struct {
	ID  int
	Bin string

	// In is the trader→exchange stream; Out is exchange→trader.
	In  *os.File
	Out *os.File

	cmd          *exec.Cmd
	exchangePath string
	traderPath   string
	log          *zap.SugaredLogger
}

// Launch creates the trader's FIFOs, starts the executable with the trader
// id as its argument, and opens both pipe ends. Opening the write end
// blocks until the trader opens its read end, so a trader that never
// connects stalls startup.
func Launch(id int, bin string, log *zap.SugaredLogger) (*Process, error) {
	p := &Process{
		ID:           id,
		Bin:          bin,
		exchangePath: ExchangePipe(id),
		traderPath:   TraderPipe(id),
		log:          log,
	}

	for _, path := range []string{p.exchangePath, p.traderPath} {
		_ = os.Remove(path)
		if err := unix.Mkfifo(path, fifoPerm); err != nil {
			return nil, fmt.Errorf("mkfifo %s: %w", path, err)
		}
	}

	p.cmd = exec.Command(bin, strconv.Itoa(id))
	p.cmd.Stdout = os.Stdout
	p.cmd.Stderr = os.Stderr
	if err := p.cmd.Start(); err != nil {
		return nil, fmt.Errorf("start trader %d (%s): %w", id, bin, err)
	}
	log.Infow("trader_starting", "trader", id, "bin", bin)

	out, err := os.OpenFile(p.exchangePath, os.O_WRONLY, 0)
	if err != nil {
		_ = p.cmd.Process.Kill()
		return nil, fmt.Errorf("open %s: %w", p.exchangePath, err)
	}
	p.Out = out
	log.Infow("pipe_connected", "path", p.exchangePath)

	in, err := os.OpenFile(p.traderPath, os.O_RDONLY, 0)
	if err != nil {
		out.Close()
		_ = p.cmd.Process.Kill()
		return nil, fmt.Errorf("open %s: %w", p.traderPath, err)
	}
	p.In = in
	log.Infow("pipe_connected", "path", p.traderPath)

	return p, nil
}

// Kill force-terminates the trader process. Used when the trader's channel
// reports end-of-stream while the process is still running.
func (p *Process) Kill() error {
	return p.cmd.Process.Kill()
}

// Wait blocks until the trader process exits.
func (p *Process) Wait() error {
	return p.cmd.Wait()
}

// Cleanup closes any still-open pipe ends and removes the FIFOs.
func (p *Process) Cleanup() {
	if p.In != nil {
		_ = p.In.Close()
	}
	if p.Out != nil {
		_ = p.Out.Close()
	}
	_ = os.Remove(p.exchangePath)
	_ = os.Remove(p.traderPath)
}
