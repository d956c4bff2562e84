package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"cronloop/internal/moments"
	"cronloop/internal/pattern"
	"cronloop/internal/pause"
)

// EventScheduledTimeMatched - имя события, которое получают слушатели.
const EventScheduledTimeMatched = "scheduled-time-matched"

// Event описывает совпавший момент расписания.
type Event struct {
	Name   string
	Moment time.Time
	// RunID - идентификатор запуска (пустой для прямого вызова Execute).
	RunID string
}

// Listener получает события расписания. Ошибка слушателя не прерывает рассылку.
type Listener func(ctx context.Context, ev Event) error

// ListenerID представляет идентификатор слушателя.
type ListenerID int

type listenerEntry struct {
	id ListenerID
	fn Listener
}

// Hooks содержит необязательные хуки для наблюдаемости.
type Hooks struct {
	OnDispatch      func(ev Event)
	OnListenerError func(id ListenerID, ev Event, err error)
}

// Config содержит конфигурацию планировщика.
type Config struct {
	// Pattern - cron-выражение из 5 или 6 полей либо дескриптор (@hourly и т.п.).
	Pattern string
	// Timezone - имя часового пояса IANA; пустое значение означает time.Local.
	Timezone string
	// Autorecover - воспроизводить все пропущенные моменты, а не только самый ранний.
	Autorecover bool
	// Strategy - стратегия перебора моментов (по умолчанию moments.KindParser).
	Strategy moments.Kind
	// Horizon ограничивает поиск следующего момента для moments.KindStepper.
	Horizon time.Duration
	Logger  *slog.Logger
	// Clock - источник времени (для тестов, по умолчанию pause.System).
	Clock pause.Clock
	Hooks Hooks
}

// runState принадлежит одной горутине запуска и не требует блокировок.
type runState struct {
	id         string
	generation uint64
	lastCheck  time.Time
	inited     bool
}

// Scheduler вызывает слушателей в моменты, заданные cron-выражением.
type Scheduler struct {
	matcher     *pattern.Matcher
	moments     *moments.Enumerator
	pauser      *pause.Pauser
	clock       pause.Clock
	autorecover bool
	logger      *slog.Logger
	hooks       Hooks
	parent      context.Context

	generation atomic.Uint64
	// active хранит поколение живого запуска, 0 - запуска нет
	active atomic.Uint64

	mu     sync.Mutex
	cancel context.CancelFunc

	lmu            sync.RWMutex
	listeners      []listenerEntry
	nextListenerID ListenerID
}

// New создает планировщик с background контекстом.
func New(cfg Config) (*Scheduler, error) {
	return NewWithContext(context.Background(), cfg)
}

// NewWithContext создает планировщик; запуски завершаются при отмене parentCtx.
// Неразбираемое выражение или неизвестный часовой пояс возвращают ошибку
// с видом shared.KindValidation.
func NewWithContext(parentCtx context.Context, cfg Config) (*Scheduler, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "scheduler")

	loc, err := pattern.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, err
	}
	matcher, err := pattern.NewMatcher(cfg.Pattern, loc)
	if err != nil {
		return nil, err
	}

	clock := cfg.Clock
	if clock == nil {
		clock = pause.System
	}

	enum := moments.New(matcher, moments.Options{
		Kind:    cfg.Strategy,
		Horizon: cfg.Horizon,
		Logger:  logger,
	})

	logger.Debug("scheduler created",
		"pattern", cfg.Pattern,
		"expression", matcher.Expression(),
		"timezone", loc.String(),
		"autorecover", cfg.Autorecover,
		"strategy", enum.Kind())

	return &Scheduler{
		matcher:        matcher,
		moments:        enum,
		pauser:         pause.New(clock),
		clock:          clock,
		autorecover:    cfg.Autorecover,
		logger:         logger,
		hooks:          cfg.Hooks,
		parent:         parentCtx,
		nextListenerID: 1,
	}, nil
}

// Expression возвращает каноническое выражение из шести полей.
func (s *Scheduler) Expression() string {
	return s.matcher.Expression()
}

// Location возвращает часовой пояс, в котором сопоставляются моменты.
func (s *Scheduler) Location() *time.Location {
	return s.matcher.Location()
}

// Strategy возвращает выбранную стратегию перебора моментов.
func (s *Scheduler) Strategy() moments.Kind {
	return s.moments.Kind()
}

// AddListener регистрирует слушателя событий.
func (s *Scheduler) AddListener(l Listener) ListenerID {
	s.lmu.Lock()
	defer s.lmu.Unlock()

	id := s.nextListenerID
	s.nextListenerID++
	s.listeners = append(s.listeners, listenerEntry{id: id, fn: l})
	return id
}

// RemoveListener удаляет слушателя по ID.
func (s *Scheduler) RemoveListener(id ListenerID) bool {
	s.lmu.Lock()
	defer s.lmu.Unlock()

	for i, l := range s.listeners {
		if l.id == id {
			s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
			return true
		}
	}
	return false
}

func (s *Scheduler) snapshot() []listenerEntry {
	s.lmu.RLock()
	defer s.lmu.RUnlock()
	return append([]listenerEntry(nil), s.listeners...)
}

// Start запускает новый цикл. Повторный вызов безопасен: предыдущий запуск
// становится неактивным из-за смены поколения.
func (s *Scheduler) Start() {
	g := s.halt()

	ctx, cancel := context.WithCancel(s.parent)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	run := &runState{
		id:         uuid.NewString(),
		generation: g,
		lastCheck:  s.clock.Now(),
	}
	s.active.Store(g)

	s.logger.Info("starting scheduler", "run_id", run.id, "expression", s.matcher.Expression())
	go s.loop(ctx, run)
}

// Stop завершает текущий запуск. Идемпотентен, безопасен до Start.
// Планировщик можно запустить снова.
func (s *Scheduler) Stop() {
	if s.IsRunning() {
		s.logger.Info("stopping scheduler")
	}
	s.halt()
}

// halt увеличивает поколение и отменяет ожидание текущего запуска.
func (s *Scheduler) halt() uint64 {
	g := s.generation.Add(1)

	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return g
}

// IsRunning возвращает true, если есть живой запуск.
func (s *Scheduler) IsRunning() bool {
	g := s.active.Load()
	return g != 0 && g == s.generation.Load()
}

// loop - цикл одного запуска. Единственная точка приостановки - ожидание
// следующего момента; после него поколение сверяется с захваченным.
func (s *Scheduler) loop(ctx context.Context, run *runState) {
	defer s.active.CompareAndSwap(run.generation, 0)
	logger := s.logger.With("run_id", run.id)

	for {
		now := s.clock.Now()
		if !run.inited {
			// моменты до старта запуска не срабатывают
			run.lastCheck = now
			run.inited = true
		} else if now.After(run.lastCheck) {
			_, fired := s.execute(ctx, run.id, run.lastCheck, now)
			if s.autorecover || !fired {
				run.lastCheck = now
			} else {
				run.lastCheck = s.clock.Now()
			}
		}

		next, ok := s.moments.Next(run.lastCheck)
		if !ok {
			logger.Info("pattern has no further moments, run finished", "last_check", run.lastCheck)
			return
		}

		logger.Debug("waiting for next moment", "next", next)
		if _, err := s.pauser.Until(ctx, next); err != nil {
			logger.Debug("run canceled while waiting", "error", err)
			return
		}
		if s.generation.Load() != run.generation {
			logger.Debug("run superseded")
			return
		}
	}
}

// Execute рассылает события за окно (from, to] и возвращает последний
// момент, доставленный без ошибок слушателей.
func (s *Scheduler) Execute(ctx context.Context, from, to time.Time) (time.Time, bool) {
	return s.execute(ctx, "", from, to)
}

func (s *Scheduler) execute(ctx context.Context, runID string, from, to time.Time) (time.Time, bool) {
	var (
		last  time.Time
		fired bool
	)
	for _, moment := range s.moments.Between(from, to, s.autorecover) {
		ev := Event{Name: EventScheduledTimeMatched, Moment: moment, RunID: runID}
		if s.dispatch(ctx, ev) {
			last, fired = moment, true
		}
	}
	return last, fired
}

// dispatch вызывает всех слушателей по порядку регистрации. Ошибки и паники
// перехватываются по одному слушателю и отбрасываются.
func (s *Scheduler) dispatch(ctx context.Context, ev Event) bool {
	if s.hooks.OnDispatch != nil {
		s.hooks.OnDispatch(ev)
	}

	clean := true
	for _, l := range s.snapshot() {
		err := invoke(ctx, l.fn, ev)
		if err == nil {
			continue
		}
		clean = false
		s.logger.Debug("listener failed", "listener", l.id, "moment", ev.Moment, "error", err)
		if s.hooks.OnListenerError != nil {
			s.hooks.OnListenerError(l.id, ev, err)
		}
	}
	return clean
}

func invoke(ctx context.Context, fn Listener, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx, ev)
}

// upcomingPrealloc ограничивает предварительную ёмкость результата Upcoming:
// n приходит из CLI и может быть сколь угодно большим.
const upcomingPrealloc = 64

// Upcoming возвращает до n следующих моментов после after.
func (s *Scheduler) Upcoming(after time.Time, n int) []time.Time {
	out := make([]time.Time, 0, min(max(n, 0), upcomingPrealloc))
	for len(out) < n {
		next, ok := s.moments.Next(after)
		if !ok {
			break
		}
		out = append(out, next)
		after = next
	}
	return out
}
