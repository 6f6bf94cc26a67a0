package intake

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"

	"dental-intake-bot/internal/catalog"
)

// Command is an explicit slash command from the operator.
type Command string

const (
	CommandStart    Command = "start"
	CommandNewEntry Command = "newpatient"
	CommandCancel   Command = "exit"
)

// Button is one selectable choice presented to the operator.
type Button struct {
	Label string
	Token string
}

// Messenger delivers replies. Delivery is fire-and-forget: implementations
// log their own failures.
type Messenger interface {
	SendPrompt(ctx context.Context, id Identity, text string)
	PresentChoices(ctx context.Context, id Identity, text string, choices []Button)
}

// Archiver receives saved submissions for out-of-band copies.
type Archiver interface {
	Archive(ctx context.Context, p *Projection) error
}

// Service is the conversation state machine. One entry point per inbound
// event kind.
type Service interface {
	HandleCommand(ctx context.Context, id Identity, cmd Command)
	HandleText(ctx context.Context, id Identity, text string)
	HandleChoice(ctx context.Context, id Identity, payload string)
}

type service struct {
	store     Store
	messenger Messenger
	sink      Sink
	projector *Projector
	archiver  Archiver
	log       zerolog.Logger
	now       func() time.Time
}

// NewService wires the controller. archiver may be nil.
func NewService(store Store, messenger Messenger, sink Sink, projector *Projector, archiver Archiver, logger zerolog.Logger) Service {
	return &service{
		store:     store,
		messenger: messenger,
		sink:      sink,
		projector: projector,
		archiver:  archiver,
		log:       logger.With().Str("component", "intake").Logger(),
		now:       time.Now,
	}
}

// turn is the scratch state of one event. Handlers mutate the session copy
// and queue replies; nothing reaches the store or the operator unless the
// handler returns without error.
type turn struct {
	id       Identity
	log      zerolog.Logger
	existed  bool
	session  *Session
	fresh    bool
	operator string
	replies  []reply
}

type reply struct {
	text    string
	choices []Button
}

func (t *turn) say(text string) { t.replies = append(t.replies, reply{text: text}) }

func (t *turn) ask(text string, choices []Button) {
	t.replies = append(t.replies, reply{text: text, choices: choices})
}

func (t *turn) start(operator string, now time.Time) *Session {
	t.session = NewSession(t.id, operator, now)
	t.fresh = true
	return t.session
}

func (t *turn) drop() {
	t.session = nil
	t.fresh = false
}

func (s *service) run(ctx context.Context, id Identity, event string, fn func(t *turn) error) {
	t := &turn{
		id:  id,
		log: s.log.With().Str("identity", string(id)).Str("event", event).Logger(),
	}
	if sess, ok := s.store.Get(id); ok {
		t.session = sess
		t.existed = true
	}

	defer func() {
		if r := recover(); r != nil {
			t.log.Error().
				Str("panic", fmt.Sprintf("%v", r)).
				Str("stack", string(debug.Stack())).
				Msg("panic recovered")
			s.messenger.SendPrompt(ctx, id, msgGenericError)
		}
	}()

	if err := fn(t); err != nil {
		t.log.Error().Err(err).Msg("event handling failed")
		s.messenger.SendPrompt(ctx, id, msgGenericError)
		return
	}

	s.commit(t)
	for _, r := range t.replies {
		if r.choices == nil {
			s.messenger.SendPrompt(ctx, id, r.text)
		} else {
			s.messenger.PresentChoices(ctx, id, r.text, r.choices)
		}
	}
}

func (s *service) commit(t *turn) {
	if t.operator != "" {
		s.store.RememberOperator(t.id, t.operator)
	}
	switch {
	case t.session == nil:
		if t.existed {
			s.store.Delete(t.id)
			t.log.Debug().Msg("session removed")
		}
	case t.fresh:
		if t.existed {
			s.store.Delete(t.id)
		}
		created := s.store.Create(t.id, t.session.OperatorName)
		t.session.CreatedAt = created.CreatedAt
		s.store.Save(t.session)
		t.log.Debug().Str("state", string(t.session.State)).Msg("session created")
	default:
		s.store.Save(t.session)
	}
}

func (s *service) HandleCommand(ctx context.Context, id Identity, cmd Command) {
	s.run(ctx, id, "command:"+string(cmd), func(t *turn) error {
		switch cmd {
		case CommandStart:
			s.greet(t)
		case CommandNewEntry:
			s.newEntry(t)
		case CommandCancel:
			s.cancel(t)
		}
		return nil
	})
}

func (s *service) HandleText(ctx context.Context, id Identity, text string) {
	s.run(ctx, id, "text", func(t *turn) error {
		sess := t.session
		if sess == nil {
			return nil
		}
		switch sess.State {
		case StateAwaitingOperator:
			sess.setOperator(text)
			t.operator = text
			t.say(welcome(text))
		case StatePatient, StateTooth, StateExamination:
			g, _, cursor, _ := sess.active()
			f, ok := cursorField(g, *cursor)
			if !ok || f.IsChoice() {
				return nil
			}
			sess.fill(text)
			s.proceed(t)
		case StateEditing:
			return s.applyEdit(t, "", text, false)
		case StateConfirming:
		}
		return nil
	})
}

func (s *service) HandleChoice(ctx context.Context, id Identity, payload string) {
	s.run(ctx, id, "choice", func(t *turn) error {
		tok, err := ParseToken(payload)
		if err != nil {
			t.log.Debug().Err(err).Msg("ignoring choice")
			return nil
		}
		if t.session == nil {
			return nil
		}
		switch tok.Kind {
		case TokenResume:
			s.resume(t, tok.Action)
		case TokenField:
			return s.choose(t, tok)
		case TokenRepeat:
			s.repeat(t, tok.Action)
		case TokenConfirm:
			s.confirm(ctx, t, tok.Action)
		case TokenEdit:
			s.selectEditTarget(t, tok)
		case TokenEditBack:
			if t.session.State == StateEditing {
				t.session.State = StateConfirming
				t.session.Edit = nil
				s.showSummary(t)
			}
		}
		return nil
	})
}

func (s *service) greet(t *turn) {
	if t.session != nil {
		t.ask(msgContinueSession, []Button{
			button(labelContinue, resumeToken(ActionContinue)),
			button(labelStartNew, resumeToken(ActionRestart)),
		})
		return
	}
	if name := s.store.OperatorName(t.id); name != "" {
		t.say(welcome(name))
		return
	}
	t.start("", s.now())
	t.say(msgAskOperatorName)
}

func (s *service) newEntry(t *turn) {
	if sess := t.session; sess != nil {
		switch {
		case sess.State != StateAwaitingOperator:
			t.say(msgAlreadyHasSession)
		case sess.OperatorName == "":
			t.say(msgAskOperatorName)
		default:
			s.beginPatient(t)
		}
		return
	}
	t.start(s.store.OperatorName(t.id), s.now())
	s.beginPatient(t)
}

func (s *service) cancel(t *turn) {
	if t.session == nil {
		t.say(msgNoActiveSession)
		return
	}
	t.drop()
	t.say(msgCancelled)
}

func (s *service) resume(t *turn, a Action) {
	switch a {
	case ActionContinue:
		s.reprompt(t)
	case ActionRestart:
		name := t.session.OperatorName
		if name == "" {
			name = s.store.OperatorName(t.id)
		}
		t.start(name, s.now())
		s.beginPatient(t)
	}
}

func (s *service) beginPatient(t *turn) {
	t.session.enter(StatePatient)
	s.proceed(t)
}

// proceed prompts for whatever the session needs next, moving on to the
// next group when the active one is exhausted.
func (s *service) proceed(t *turn) {
	sess := t.session
	for {
		g, _, cursor, ok := sess.active()
		if !ok {
			break
		}
		if f, ok := cursorField(g, *cursor); ok {
			s.promptField(t, f)
			return
		}
		switch sess.State {
		case StatePatient:
			sess.enter(StateTooth)
		case StateTooth:
			t.ask(msgAskAddTooth, []Button{
				button(labelAddToothYes, repeatToken(ActionYes)),
				button(labelAddToothNo, repeatToken(ActionNo)),
			})
			return
		case StateExamination:
			sess.State = StateConfirming
		}
	}
	if sess.State == StateConfirming {
		s.showSummary(t)
	}
}

// reprompt repeats the prompt for the session's current position.
func (s *service) reprompt(t *turn) {
	switch t.session.State {
	case StateAwaitingOperator:
		if name := t.session.OperatorName; name != "" {
			t.say(welcome(name))
			return
		}
		t.say(msgAskOperatorName)
	case StatePatient, StateTooth, StateExamination:
		s.proceed(t)
	case StateConfirming:
		s.showSummary(t)
	case StateEditing:
		s.promptEdit(t)
	}
}

func (s *service) promptField(t *turn, f catalog.Field) {
	if f.IsChoice() {
		t.ask(choicePrompt(f.Label), choiceButtons(f))
		return
	}
	t.say(fieldPrompt(f.Label))
}

func (s *service) choose(t *turn, tok Token) error {
	sess := t.session
	option, ok := catalog.FindOption(tok.Field, tok.Option)
	if !ok {
		return nil
	}
	switch sess.State {
	case StatePatient, StateTooth, StateExamination:
		g, _, cursor, _ := sess.active()
		f, ok := cursorField(g, *cursor)
		if !ok || !f.IsChoice() || f.Key != tok.Field {
			return nil
		}
		sess.fill(option.Label)
		s.proceed(t)
	case StateEditing:
		return s.applyEdit(t, tok.Field, option.Label, true)
	}
	return nil
}

func (s *service) repeat(t *turn, a Action) {
	sess := t.session
	if sess.State != StateTooth {
		return
	}
	if _, pending := cursorField(catalog.GroupTooth, sess.ToothCursor); pending {
		return
	}
	switch a {
	case ActionYes:
		sess.commitTooth()
		sess.enter(StateTooth)
	case ActionNo:
		sess.commitTooth()
		sess.enter(StateExamination)
	default:
		return
	}
	s.proceed(t)
}

func (s *service) confirm(ctx context.Context, t *turn, a Action) {
	sess := t.session
	if sess.State != StateConfirming {
		return
	}
	switch a {
	case ActionYes:
		s.save(ctx, t)
	case ActionNo:
		t.drop()
		t.say(msgCancelled)
	case ActionChange:
		sess.State = StateEditing
		sess.Edit = &EditTarget{}
		s.promptEdit(t)
	}
}

func (s *service) save(ctx context.Context, t *turn) {
	proj := s.projector.Project(t.session)
	log := t.log.With().
		Str("submission_id", proj.SubmissionID.String()).
		Int64("record_id", proj.RecordID).
		Int("rows", len(proj.Rows)).
		Logger()

	receipt, err := s.sink.AppendSubmission(ctx, proj)
	if err != nil {
		log.Error().Err(err).Msg("saving submission failed")
		t.say(msgSaveFailed)
		return
	}
	log.Info().Str("location", receipt.Location).Msg("submission saved")

	t.drop()
	t.say(msgSuccess)

	if s.archiver != nil && len(proj.Rows) > 0 {
		go func() {
			if err := s.archiver.Archive(context.WithoutCancel(ctx), proj); err != nil {
				log.Warn().Err(err).Msg("archiving submission failed")
			}
		}()
	}
}

func (s *service) showSummary(t *turn) {
	t.ask(Summary(t.session), []Button{
		button(labelYes, confirmToken(ActionYes)),
		button(labelNo, confirmToken(ActionNo)),
		button(labelChange, confirmToken(ActionChange)),
	})
}

func (s *service) promptEdit(t *turn) {
	sess := t.session
	e := sess.Edit
	switch {
	case e == nil || e.Group == "":
		t.ask(msgSelectFieldToEdit, editMenu(sess))
	case e.Resolved():
		f, _, ok := catalog.Lookup(e.Group, e.Field)
		if !ok {
			t.ask(msgSelectFieldToEdit, editMenu(sess))
			return
		}
		if f.IsChoice() {
			t.ask(choicePrompt(f.Label), choiceButtons(f))
			return
		}
		t.say(editPrompt(f.Label))
	default:
		t.ask(fmt.Sprintf(msgSelectToothField, e.Index+1), toothEditMenu(e.Index))
	}
}

func (s *service) selectEditTarget(t *turn, tok Token) {
	sess := t.session
	if sess.State != StateEditing {
		return
	}
	if tok.Group == catalog.GroupTooth && tok.Index >= len(sess.Teeth) {
		return
	}
	if tok.Field != "" {
		if _, _, ok := catalog.Lookup(tok.Group, tok.Field); !ok {
			return
		}
	}
	sess.Edit = &EditTarget{Group: tok.Group, Index: tok.Index, Field: tok.Field}
	s.promptEdit(t)
}

// applyEdit writes a new value into the resolved edit target. choice tells
// whether value came from a button; fieldKey is the button's field.
func (s *service) applyEdit(t *turn, fieldKey, value string, choice bool) error {
	sess := t.session
	e := sess.Edit
	if e == nil || !e.Resolved() {
		return nil
	}
	f, _, ok := catalog.Lookup(e.Group, e.Field)
	if !ok {
		return fmt.Errorf("edit target %s/%s not in catalog", e.Group, e.Field)
	}
	if f.IsChoice() != choice || (choice && f.Key != fieldKey) {
		return nil
	}
	rec := sess.record(e.Group, e.Index)
	if rec == nil {
		return fmt.Errorf("edit target %s #%d out of range", e.Group, e.Index)
	}
	rec[f.Key] = value
	sess.Edit = nil
	sess.State = StateConfirming
	s.showSummary(t)
	return nil
}

func button(label string, tok Token) Button {
	return Button{Label: label, Token: tok.Encode()}
}

func choiceButtons(f catalog.Field) []Button {
	opts := catalog.Choices(f.Key)
	out := make([]Button, 0, len(opts))
	for _, o := range opts {
		out = append(out, button(o.Label, fieldToken(f.Key, o.Key)))
	}
	return out
}

func editMenu(sess *Session) []Button {
	var out []Button
	for _, f := range catalog.Fields(catalog.GroupPatient) {
		out = append(out, button(f.Label, editFieldToken(catalog.GroupPatient, 0, f.Key)))
	}
	for i, tooth := range sess.Teeth {
		out = append(out, button(toothLabel(i+1, tooth), editFieldToken(catalog.GroupTooth, i, "")))
	}
	for _, f := range catalog.Fields(catalog.GroupExamination) {
		out = append(out, button(f.Label, editFieldToken(catalog.GroupExamination, 0, f.Key)))
	}
	return append(out, button(labelBack, Token{Kind: TokenEditBack}))
}

func toothEditMenu(index int) []Button {
	var out []Button
	for _, f := range catalog.Fields(catalog.GroupTooth) {
		out = append(out, button(f.Label, editFieldToken(catalog.GroupTooth, index, f.Key)))
	}
	return append(out, button(labelBack, Token{Kind: TokenEditBack}))
}
