package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/SAP-F-2025/marking-service/internal/channel"
	apperrors "github.com/SAP-F-2025/marking-service/internal/errors"
	"github.com/SAP-F-2025/marking-service/internal/events"
	"github.com/SAP-F-2025/marking-service/internal/models"
	"github.com/SAP-F-2025/marking-service/internal/scoring"
	"github.com/SAP-F-2025/marking-service/internal/validator"
)

const (
	persistTimeout    = 10 * time.Second
	sideEffectTimeout = 5 * time.Second
	eventQueueSize    = 64
	outboxSize        = 256
)

type loopEventKind int

const (
	loopSubmit loopEventKind = iota + 1
	loopQuestionTimeout
	loopGroupTimeout
	loopSendFailed
	loopPersistFailed
	loopClear
	loopClose
)

type loopEvent struct {
	kind       loopEventKind
	batchID    string
	questionID string
	questions  []models.QuestionMarkingContext
	err        error
	reply      chan submitReply
	done       chan struct{}
}

type submitReply struct {
	batchID string
	report  <-chan BatchReport
}

type pendingQuestion struct {
	question   *models.QuestionMarkingContext
	answerText string
	timer      Timer
}

type batchState struct {
	id         string
	expected   int
	received   int
	pending    map[string]*pendingQuestion
	groupTimer Timer
	failed     []string
	report     chan BatchReport
}

// CoordinatorDeps are the collaborators of a Coordinator. Notifier and
// LiveView are optional.
type CoordinatorDeps struct {
	Scorer    *scoring.Scorer
	Channel   MarkingChannel
	Persister Persister
	Notifier  Notifier
	LiveView  LiveView
	Validator *validator.Validator
	Clock     Clock
	Logger    *slog.Logger
}

// Coordinator marks batches of questions. All marking state is owned by a
// single goroutine; every input (submissions, channel events, timer fires,
// background failures) is an event handled to completion before the next.
type Coordinator struct {
	cfg       CoordinatorConfig
	scorer    *scoring.Scorer
	channel   MarkingChannel
	persister Persister
	notifier  Notifier
	liveView  LiveView
	validator *validator.Validator
	clock     Clock
	logger    *slog.Logger

	events  chan loopEvent
	outbox  chan func(context.Context)
	stopped chan struct{}
	alive   atomic.Bool

	closeOnce sync.Once
	wg        sync.WaitGroup
	cancel    context.CancelFunc
	ctx       context.Context

	stateMu  sync.RWMutex
	snapshot MarkingState

	// owned by run
	batch       *batchState
	status      BatchStatus
	lastBatchID string
	live        map[string]*models.MarkingResult
	order       []string
	lastErr     error
}

// NewCoordinator starts a coordinator. Close must be called to release it.
func NewCoordinator(cfg CoordinatorConfig, deps CoordinatorDeps) *Coordinator {
	if deps.Clock == nil {
		deps.Clock = RealClock()
	}
	if deps.Scorer == nil {
		deps.Scorer = scoring.NewScorer().WithClock(deps.Clock.Now)
	}
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		cfg:       cfg.withDefaults(),
		scorer:    deps.Scorer,
		channel:   deps.Channel,
		persister: deps.Persister,
		notifier:  deps.Notifier,
		liveView:  deps.LiveView,
		validator: deps.Validator,
		clock:     deps.Clock,
		logger:    deps.Logger.With("component", "marking_coordinator"),
		events:    make(chan loopEvent, eventQueueSize),
		outbox:    make(chan func(context.Context), outboxSize),
		stopped:   make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
		status:    BatchIdle,
		live:      make(map[string]*models.MarkingResult),
	}
	c.alive.Store(true)
	c.snapshot = MarkingState{Status: BatchIdle, Results: []*models.MarkingResult{}}

	c.wg.Add(1)
	go c.drainOutbox()
	go c.run()
	return c
}

// SubmitBatch starts marking questions and returns the batch id and a
// channel that delivers one BatchReport when the batch settles. A batch
// still in flight is superseded.
func (c *Coordinator) SubmitBatch(ctx context.Context, questions []models.QuestionMarkingContext) (string, <-chan BatchReport, error) {
	if !c.alive.Load() {
		return "", nil, apperrors.ErrCoordinatorClosed
	}

	reply := make(chan submitReply, 1)
	ev := loopEvent{
		kind:      loopSubmit,
		questions: append([]models.QuestionMarkingContext(nil), questions...),
		reply:     reply,
	}
	select {
	case c.events <- ev:
	case <-c.stopped:
		return "", nil, apperrors.ErrCoordinatorClosed
	case <-ctx.Done():
		return "", nil, ctx.Err()
	}

	select {
	case r := <-reply:
		return r.batchID, r.report, nil
	case <-c.stopped:
		select {
		case r := <-reply:
			return r.batchID, r.report, nil
		default:
			return "", nil, apperrors.ErrCoordinatorClosed
		}
	}
}

// ClearResult discards the live results and the last error.
func (c *Coordinator) ClearResult() {
	done := make(chan struct{})
	select {
	case c.events <- loopEvent{kind: loopClear, done: done}:
	case <-c.stopped:
		return
	}
	select {
	case <-done:
	case <-c.stopped:
	}
}

// State returns a copy of the observable marking state.
func (c *Coordinator) State() MarkingState {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()

	state := c.snapshot
	state.Results = make([]*models.MarkingResult, len(c.snapshot.Results))
	for i, r := range c.snapshot.Results {
		state.Results[i] = r.Clone()
	}
	return state
}

// Result returns a copy of the live result for one question.
func (c *Coordinator) Result(questionID string) (*models.MarkingResult, bool) {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()

	for _, r := range c.snapshot.Results {
		if r.QuestionID == questionID {
			return r.Clone(), true
		}
	}
	return nil, false
}

// Close stops every timer, reports an in-flight batch as closed and waits
// for pending saves and side effects. Events arriving afterwards are ignored.
func (c *Coordinator) Close() error {
	c.closeOnce.Do(func() {
		done := make(chan struct{})
		select {
		case c.events <- loopEvent{kind: loopClose, done: done}:
			<-done
		case <-c.stopped:
		}
		<-c.stopped
		c.alive.Store(false)
		c.cancel()
		close(c.outbox)
		c.wg.Wait()
	})
	return nil
}

func (c *Coordinator) run() {
	defer close(c.stopped)

	var channelEvents <-chan channel.Event
	if c.channel != nil {
		channelEvents = c.channel.Events()
	}

	for {
		select {
		case ev := <-c.events:
			if ev.kind == loopClose {
				c.settle(BatchClosed)
				c.alive.Store(false)
				c.publishState()
				close(ev.done)
				return
			}
			c.handle(ev)
		case ce := <-channelEvents:
			c.handleChannelEvent(ce)
		}
		c.publishState()
	}
}

func (c *Coordinator) handle(ev loopEvent) {
	switch ev.kind {
	case loopSubmit:
		c.handleSubmit(ev)
	case loopQuestionTimeout:
		c.handleQuestionTimeout(ev)
	case loopGroupTimeout:
		c.handleGroupTimeout(ev)
	case loopSendFailed:
		c.handleSendFailed(ev)
	case loopPersistFailed:
		c.handlePersistFailed(ev)
	case loopClear:
		c.handleClear(ev)
	}
}

// post hands an event to the loop unless the coordinator is gone.
func (c *Coordinator) post(ev loopEvent) {
	if !c.alive.Load() {
		return
	}
	select {
	case c.events <- ev:
	case <-c.stopped:
	}
}

func (c *Coordinator) handleSubmit(ev loopEvent) {
	if c.batch != nil {
		c.logger.Info("Superseding in-flight marking batch", "batch_id", c.batch.id)
		c.settle(BatchSuperseded)
	}

	b := &batchState{
		id:      uuid.NewString(),
		pending: make(map[string]*pendingQuestion),
		report:  make(chan BatchReport, 1),
	}
	c.batch = b
	c.status = BatchMarking
	c.lastBatchID = b.id
	c.lastErr = nil
	c.live = make(map[string]*models.MarkingResult)
	c.order = nil
	c.enqueueLiveClear()

	c.logger.Info("Marking batch submitted", "batch_id", b.id, "questions", len(ev.questions))

	seen := make(map[string]struct{}, len(ev.questions))
	for i := range ev.questions {
		q := &ev.questions[i]
		if _, dup := seen[q.QuestionID]; dup && q.QuestionID != "" {
			c.failQuestion(b, q.QuestionID, q.QuestionType, apperrors.KindInvalidInput,
				fmt.Errorf("question %s submitted twice in one batch", q.QuestionID))
			continue
		}
		seen[q.QuestionID] = struct{}{}
		c.dispatch(b, q)
	}

	reply := submitReply{batchID: b.id, report: b.report}
	if b.expected == 0 {
		c.settle(BatchComplete)
	} else {
		batchID := b.id
		b.groupTimer = c.clock.AfterFunc(c.cfg.GroupTimeout, func() {
			c.post(loopEvent{kind: loopGroupTimeout, batchID: batchID})
		})
	}
	ev.reply <- reply
}

func (c *Coordinator) dispatch(b *batchState, q *models.QuestionMarkingContext) {
	if err := c.validator.ValidateMarkingContext(q); err != nil {
		c.failQuestion(b, q.QuestionID, q.QuestionType, apperrors.KindInvalidInput, err)
		return
	}

	switch {
	case q.SkipMarking:
		result := c.newResult(b.id, q)
		c.store(result)
		c.persist(b.id, result)
	case q.QuestionType.RequiresRemoteMarking():
		c.dispatchRemote(b, q)
	default:
		c.dispatchDeterministic(b, q)
	}
}

func (c *Coordinator) dispatchDeterministic(b *batchState, q *models.QuestionMarkingContext) {
	result, err := c.mark(q)
	if err != nil {
		kind := apperrors.KindOf(err)
		if kind == apperrors.KindRemote {
			kind = apperrors.KindInvalidInput
		}
		c.failQuestion(b, q.QuestionID, q.QuestionType, kind, err)
		return
	}

	result.BatchID = b.id
	c.store(result)
	if !result.IsMarked {
		c.logger.Debug("No scoring rule for question type, stored unmarked",
			"batch_id", b.id,
			"question_id", q.QuestionID,
			"question_type", q.QuestionType)
		return
	}
	c.persist(b.id, result)
	c.enqueueMarked(b.id, result)
}

func (c *Coordinator) mark(q *models.QuestionMarkingContext) (result *models.MarkingResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("scoring %s question panicked: %v", q.QuestionType, r)
		}
	}()
	return c.scorer.Mark(q)
}

func (c *Coordinator) dispatchRemote(b *batchState, q *models.QuestionMarkingContext) {
	if c.channel == nil {
		c.failQuestion(b, q.QuestionID, q.QuestionType, apperrors.KindChannel,
			fmt.Errorf("%w: no marking channel configured", apperrors.ErrChannelUnavailable))
		return
	}

	op, req, err := channel.BuildMarkRequest(q, c.cfg.SpecificationID)
	if err != nil {
		c.failQuestion(b, q.QuestionID, q.QuestionType, apperrors.KindInvalidInput, err)
		return
	}

	b.expected++
	c.store(c.newResult(b.id, q))

	batchID, questionID := b.id, q.QuestionID
	b.pending[questionID] = &pendingQuestion{
		question:   q,
		answerText: req.Answer,
		timer: c.clock.AfterFunc(c.cfg.QuestionTimeout, func() {
			c.post(loopEvent{kind: loopQuestionTimeout, batchID: batchID, questionID: questionID})
		}),
	}

	go c.send(batchID, questionID, op, req)
}

func (c *Coordinator) send(batchID, questionID string, op channel.MessageType, req channel.MarkRequest) {
	ctx, cancel := context.WithTimeout(c.ctx, c.cfg.QuestionTimeout)
	defer cancel()

	if err := c.channel.Send(ctx, op, req); err != nil {
		c.post(loopEvent{kind: loopSendFailed, batchID: batchID, questionID: questionID, err: err})
	}
}

func (c *Coordinator) handleSendFailed(ev loopEvent) {
	b, p := c.takePending(ev.batchID, ev.questionID)
	if p == nil {
		return
	}
	err := ev.err
	if !errors.Is(err, apperrors.ErrChannelUnavailable) {
		err = fmt.Errorf("%w: %v", apperrors.ErrChannelUnavailable, err)
	}
	c.failQuestion(b, ev.questionID, p.question.QuestionType, apperrors.KindChannel, err)
}

func (c *Coordinator) handleQuestionTimeout(ev loopEvent) {
	b, p := c.takePending(ev.batchID, ev.questionID)
	if p == nil {
		return
	}
	c.failQuestion(b, ev.questionID, p.question.QuestionType, apperrors.KindQuestionTimeout, apperrors.ErrQuestionTimeout)

	// the channel may be wedged
	go func() {
		ctx, cancel := context.WithTimeout(c.ctx, c.cfg.ConnectWait)
		defer cancel()
		if err := c.channel.Reconnect(ctx); err != nil {
			c.logger.Warn("Reconnect after question timeout failed",
				"question_id", ev.questionID,
				"error", err)
		}
	}()
}

func (c *Coordinator) handleGroupTimeout(ev loopEvent) {
	b := c.currentBatch(ev.batchID)
	if b == nil {
		return
	}
	if len(b.pending) > 0 {
		c.lastErr = apperrors.NewMarkingError(apperrors.KindGroupTimeout, "", apperrors.ErrGroupTimeout)
		c.notifyUser(Notification{
			Level:   events.LevelError,
			Title:   "Marking incomplete",
			Message: "Some answers could not be marked in time. Please try again.",
			BatchID: b.id,
		})
	}
	c.logger.Warn("Marking batch timed out",
		"batch_id", b.id,
		"expected", b.expected,
		"received", b.received)
	c.settle(BatchTimedOut)
}

func (c *Coordinator) handlePersistFailed(ev loopEvent) {
	failure := apperrors.NewMarkingError(apperrors.KindPersistence, ev.questionID,
		fmt.Errorf("%w: %v", apperrors.ErrPersistenceFailure, ev.err))
	c.lastErr = failure

	c.logger.Error("Failed to save marking result",
		"batch_id", ev.batchID,
		"question_id", ev.questionID,
		"error", ev.err)
	c.notifyUser(Notification{
		Level:      events.LevelError,
		Title:      "Result not saved",
		Message:    "Your mark is shown but could not be saved.",
		BatchID:    ev.batchID,
		QuestionID: ev.questionID,
	})
}

func (c *Coordinator) handleClear(ev loopEvent) {
	c.live = make(map[string]*models.MarkingResult)
	c.order = nil
	c.lastErr = nil
	if c.batch == nil {
		c.status = BatchIdle
	}
	c.enqueueLiveClear()
	close(ev.done)
}

func (c *Coordinator) handleChannelEvent(ev channel.Event) {
	if !c.alive.Load() {
		return
	}
	b := c.batch
	if b == nil {
		c.logger.Debug("Ignoring marking event with no batch in flight",
			"kind", ev.Kind,
			"question_id", ev.QuestionID)
		return
	}

	if ev.Kind == channel.EventError {
		for _, questionID := range c.errorTargets(b, ev.QuestionID) {
			_, p := c.takePending(b.id, questionID)
			c.failQuestion(b, questionID, p.question.QuestionType, apperrors.KindRemote,
				fmt.Errorf("%w: %s", apperrors.ErrRemoteMarking, ev.Message))
		}
		return
	}

	questionID, ok := c.eventTarget(b, ev.QuestionID)
	if !ok {
		c.logger.Debug("Ignoring marking event for unknown question",
			"batch_id", b.id,
			"kind", ev.Kind,
			"question_id", ev.QuestionID)
		return
	}
	p := b.pending[questionID]

	switch ev.Kind {
	case channel.EventAnnotations:
		result := c.liveResult(b.id, p.question)
		result.Annotations = models.Annotations{
			Strong: append([]string(nil), ev.Annotations.Strong...),
			Weak:   append([]string(nil), ev.Annotations.Weak...),
		}
		c.mirror(result)
	case channel.EventMarkingTable:
		result := c.liveResult(b.id, p.question)
		result.MarkingTable = ev.MarkingTable
		c.mirror(result)
	case channel.EventFinal:
		c.finalize(b, questionID, ev.Final)
	}
}

// eventTarget resolves the question a partial or final event belongs to. An
// event without a question id is accepted only when a single question is in
// flight.
func (c *Coordinator) eventTarget(b *batchState, questionID string) (string, bool) {
	if questionID != "" {
		_, ok := b.pending[questionID]
		return questionID, ok
	}
	if len(b.pending) != 1 {
		return "", false
	}
	for id := range b.pending {
		return id, true
	}
	return "", false
}

// errorTargets resolves an error event; one without a question id aborts
// every question in flight.
func (c *Coordinator) errorTargets(b *batchState, questionID string) []string {
	if questionID != "" {
		if _, ok := b.pending[questionID]; ok {
			return []string{questionID}
		}
		return nil
	}
	return pendingIDs(b)
}

func (c *Coordinator) finalize(b *batchState, questionID string, final *channel.FinalResponse) {
	_, p := c.takePending(b.id, questionID)
	result := c.liveResult(b.id, p.question)

	weak, strong := final.WeakSentences, final.StrongSentences
	if len(weak) == 0 && len(strong) == 0 {
		weak, strong = final.Annotations.Weak, final.Annotations.Strong
	}
	annotations := final.Annotations
	if len(annotations.Strong) == 0 && len(annotations.Weak) == 0 {
		annotations = models.Annotations{Strong: strong, Weak: weak}
	}
	table := final.MarkingTable
	if table == "" {
		table = result.MarkingTable
	}

	result.AnnotatedAnswer = models.AnnotatedAnswer{Text: channel.Highlight(p.answerText, weak, strong)}
	result.Annotations = annotations
	result.MarkingTable = table
	result.UserMark = models.MarkPtr(clampMark(float64(final.Mark), p.question.MarkMax))
	result.IsMarked = true
	result.AOAnalysis = final.AOAnalysis
	markedAt := c.clock.Now()
	result.MarkedAt = &markedAt

	b.received++
	c.logger.Info("Remote marking received",
		"batch_id", b.id,
		"question_id", questionID,
		"received", b.received,
		"expected", b.expected)

	c.mirror(result)
	c.persist(b.id, result)
	c.enqueueMarked(b.id, result)

	if b.received == b.expected {
		c.settle(BatchComplete)
	}
}

// settle ends the current batch: every timer is stopped, the counters are
// reset and the report is delivered.
func (c *Coordinator) settle(status BatchStatus) {
	b := c.batch
	if b == nil {
		return
	}

	if b.groupTimer != nil {
		b.groupTimer.Stop()
	}
	for _, id := range pendingIDs(b) {
		b.pending[id].timer.Stop()
		b.failed = append(b.failed, id)
	}

	report := BatchReport{
		BatchID:  b.id,
		Status:   status,
		Expected: b.expected,
		Received: b.received,
		Failed:   b.failed,
	}

	b.pending = nil
	b.expected, b.received = 0, 0
	c.batch = nil
	c.status = status

	b.report <- report
	close(b.report)

	c.logger.Info("Marking batch settled",
		"batch_id", report.BatchID,
		"status", report.Status,
		"expected", report.Expected,
		"received", report.Received,
		"failed", len(report.Failed))

	if c.notifier != nil {
		c.enqueue(func(ctx context.Context) {
			c.notifier.BatchSettled(ctx, report)
		})
	}
}

func (c *Coordinator) failQuestion(b *batchState, questionID string, questionType models.QuestionType, kind apperrors.MarkingErrorKind, err error) {
	failure := apperrors.NewMarkingError(kind, questionID, err)
	b.failed = append(b.failed, questionID)
	c.lastErr = failure

	c.logger.Warn("Question marking failed",
		"batch_id", b.id,
		"question_id", questionID,
		"question_type", questionType,
		"kind", kind,
		"error", err)

	if c.notifier != nil {
		batchID := b.id
		c.enqueue(func(ctx context.Context) {
			c.notifier.QuestionFailed(ctx, batchID, questionType, failure)
		})
	}
	c.notifyUser(Notification{
		Level:      events.LevelError,
		Title:      "Marking failed",
		Message:    failureMessage(kind),
		BatchID:    b.id,
		QuestionID: questionID,
	})
}

func failureMessage(kind apperrors.MarkingErrorKind) string {
	switch kind {
	case apperrors.KindUnsupportedType:
		return "This question type cannot be marked yet."
	case apperrors.KindInvalidInput:
		return "This answer could not be read for marking."
	case apperrors.KindChannel:
		return "Could not reach the marking service. Check your connection and try again."
	case apperrors.KindQuestionTimeout:
		return "Marking took too long for this answer. Please try again."
	default:
		return "The marking service could not mark this answer."
	}
}

func (c *Coordinator) takePending(batchID, questionID string) (*batchState, *pendingQuestion) {
	b := c.currentBatch(batchID)
	if b == nil {
		return nil, nil
	}
	p, ok := b.pending[questionID]
	if !ok {
		return nil, nil
	}
	p.timer.Stop()
	delete(b.pending, questionID)
	return b, p
}

func (c *Coordinator) currentBatch(batchID string) *batchState {
	if c.batch == nil || c.batch.id != batchID {
		return nil
	}
	return c.batch
}

func (c *Coordinator) newResult(batchID string, q *models.QuestionMarkingContext) *models.MarkingResult {
	return &models.MarkingResult{
		QuestionID:   q.QuestionID,
		QuestionType: q.QuestionType,
		BatchID:      batchID,
		UserAnswer:   q.UserAnswer,
		MarkMax:      q.MarkMax,
		Annotations:  models.Annotations{Strong: []string{}, Weak: []string{}},
	}
}

// liveResult returns the live result for q, recreating it if it was cleared.
func (c *Coordinator) liveResult(batchID string, q *models.QuestionMarkingContext) *models.MarkingResult {
	if r, ok := c.live[q.QuestionID]; ok {
		return r
	}
	r := c.newResult(batchID, q)
	c.store(r)
	return r
}

func (c *Coordinator) store(result *models.MarkingResult) {
	if _, ok := c.live[result.QuestionID]; !ok {
		c.order = append(c.order, result.QuestionID)
	}
	c.live[result.QuestionID] = result
	c.mirror(result)
}

func pendingIDs(b *batchState) []string {
	ids := make([]string, 0, len(b.pending))
	for id := range b.pending {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func clampMark(mark float64, markMax int) float64 {
	if mark < 0 {
		return 0
	}
	if limit := float64(markMax); mark > limit {
		return limit
	}
	return mark
}
