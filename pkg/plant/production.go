package plant

import (
	"sync"
	"time"

	"github.com/officina-protocol/officina-go/pkg/machine"
)

// productionLoop periodically increments the parts counter of every
// machine that is currently On. It simulates the plant floor producing
// parts so that subscribed controllers see PezziProdotti move.
type productionLoop struct {
	machines map[uint8]*machine.CNC
	interval time.Duration

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func newProductionLoop(machines map[uint8]*machine.CNC, interval time.Duration) *productionLoop {
	return &productionLoop{
		machines: machines,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the production ticker.
func (p *productionLoop) Start() {
	p.wg.Add(1)
	go p.run()
}

// Stop stops the ticker and waits for the loop to exit.
func (p *productionLoop) Stop() {
	close(p.stopCh)
	p.wg.Wait()
}

func (p *productionLoop) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.tick()
		}
	}
}

func (p *productionLoop) tick() {
	// ProduceParts is a no-op unless the machine is On.
	for _, cnc := range p.machines {
		cnc.ProduceParts(1)
	}
}
