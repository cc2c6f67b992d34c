package evaluator

// pool.go — worker pool de vida explícita para correr episodios en paralelo.
//
// El pool es un handle: lo crea quien arma el proceso (cmd/), se inyecta en el
// Evaluator y se cierra explícitamente al terminar. No hay estado global.

import (
	"errors"
	"log/slog"
	"runtime"
	"sync"
)

// ErrPoolClosed se devuelve al enviar trabajo a un pool cerrado.
var ErrPoolClosed = errors.New("worker pool closed")

// Pool ejecuta tareas en un número fijo de goroutines.
type Pool struct {
	workers int
	workCh  chan func()
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewPool arranca workers goroutines. Si workers <= 0 usa runtime.NumCPU().
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	p := &Pool{
		workers: workers,
		workCh:  make(chan func()),
	}

	// Worker pool: cada worker toma tareas de workCh hasta que se cierre.
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer p.wg.Done()
			for task := range p.workCh {
				task()
			}
		}()
	}

	slog.Debug("worker pool started", "workers", workers)
	return p
}

// Workers devuelve el número de goroutines del pool.
func (p *Pool) Workers() int {
	return p.workers
}

// Submit encola una tarea; bloquea hasta que un worker la toma.
// La tarea no debe entrar en pánico: el Evaluator recupera pánicos antes.
func (p *Pool) Submit(task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	p.workCh <- task
	return nil
}

// Close deja de aceptar tareas y espera a que los workers terminen las que tienen.
// Es idempotente.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.workCh)
	p.mu.Unlock()

	p.wg.Wait()
	slog.Debug("worker pool stopped", "workers", p.workers)
}
