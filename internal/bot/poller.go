package bot

import (
	"context"
	"sync"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	log "github.com/sirupsen/logrus"

	"github.com/wardenbot/warden/internal/infra"
)

// Poller pulls updates via long polling and feeds them to the processor.
// Implements the lifecycle Component contract.
type Poller struct {
	bot       *api.BotAPI
	processor *UpdateProcessor

	cancel   context.CancelFunc
	done     chan struct{}
	doneOnce sync.Once

	logger *log.Entry
}

func NewPoller(bot *api.BotAPI, processor *UpdateProcessor) *Poller {
	return &Poller{
		bot:       bot,
		processor: processor,
		done:      make(chan struct{}),
		logger:    log.WithField("object", "poller"),
	}
}

func (p *Poller) Start(context.Context) error {
	pollCtx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	// close(done) must not sit in a defer here: a panic would close it during
	// unwinding and the restarted run would close it again on clean return.
	go infra.GoRecoverable(-1, "update poller", func() {
		p.run(pollCtx)
		p.doneOnce.Do(func() { close(p.done) })
	})
	return nil
}

func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Poller) run(ctx context.Context) {
	config := api.NewUpdate(0)
	config.Timeout = 30

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		updates, err := p.bot.GetUpdates(config)
		if err != nil {
			p.logger.WithField("error", err.Error()).Error("cant fetch updates, backing off")
			select {
			case <-ctx.Done():
				return
			case <-time.After(3 * time.Second):
			}
			continue
		}

		for i := range updates {
			update := updates[i]
			if update.UpdateID >= config.Offset {
				config.Offset = update.UpdateID + 1
			}
			if err := p.processor.Process(ctx, &update); err != nil {
				p.logger.WithField("error", err.Error()).Error("cant process update")
			}
		}
	}
}
