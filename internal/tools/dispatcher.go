package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/suPer8Hu/kinfolk/internal/ai"
	"github.com/suPer8Hu/kinfolk/internal/metrics"
	"github.com/suPer8Hu/kinfolk/internal/models"
)

// GraphStore is the part of the graph store the tools reach.
type GraphStore interface {
	ListPeople(ctx context.Context) ([]models.Person, error)
	ListMarriages(ctx context.Context) ([]models.Marriage, error)
	CountPeople(ctx context.Context) (int64, error)
	AddPerson(ctx context.Context, in models.NewPerson) (*models.Person, error)
	UpdatePerson(ctx context.Context, id string, upd models.PersonUpdate) (*models.Person, error)
}

// RefreshFunc reloads whatever state sits on top of the store after a write.
type RefreshFunc func(ctx context.Context) error

// Dispatcher runs tool calls. Results are always text: failures are reported
// to the model as a normal tool result.
type Dispatcher struct {
	store   GraphStore
	refresh RefreshFunc
	log     zerolog.Logger
}

func NewDispatcher(store GraphStore, refresh RefreshFunc, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		store:   store,
		refresh: refresh,
		log:     log.With().Str("component", "tools").Logger(),
	}
}

func (d *Dispatcher) Execute(ctx context.Context, call ai.ToolCall) string {
	var (
		result string
		err    error
	)
	switch call.Name {
	case GetPeople:
		result, err = d.getPeople(ctx)
	case GetMarriages:
		result, err = d.getMarriages(ctx)
	case AddPerson:
		result, err = d.addPerson(ctx, call.Args)
	case UpdatePerson:
		result, err = d.updatePerson(ctx, call.Args)
	default:
		metrics.ToolCalls.WithLabelValues("unknown", "unknown").Inc()
		d.log.Warn().Str("tool", call.Name).Msg("unknown tool requested")
		return "Unknown tool: " + call.Name
	}

	if err != nil {
		metrics.ToolCalls.WithLabelValues(call.Name, "error").Inc()
		d.log.Warn().Err(err).Str("tool", call.Name).Str("call_id", call.ID).Msg("tool failed")
		return fmt.Sprintf("Error executing tool %s: %s", call.Name, err.Error())
	}
	metrics.ToolCalls.WithLabelValues(call.Name, "ok").Inc()
	d.log.Info().Str("tool", call.Name).Str("call_id", call.ID).Msg("tool executed")
	return result
}

func (d *Dispatcher) getPeople(ctx context.Context) (string, error) {
	people, err := d.store.ListPeople(ctx)
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, len(people))
	for _, p := range people {
		parts = append(parts, fmt.Sprintf("%s %s (ID: %s)", p.FirstName, p.LastName, p.ID))
	}
	return fmt.Sprintf("Found %d people: %s", len(people), strings.Join(parts, ", ")), nil
}

func (d *Dispatcher) getMarriages(ctx context.Context) (string, error) {
	marriages, err := d.store.ListMarriages(ctx)
	if err != nil {
		return "", err
	}
	if len(marriages) == 0 {
		return "Found 0 marriages.", nil
	}
	people, err := d.store.ListPeople(ctx)
	if err != nil {
		return "", err
	}
	names := make(map[string]string, len(people))
	for _, p := range people {
		names[p.ID] = strings.TrimSpace(p.FirstName + " " + p.LastName)
	}
	name := func(id string) string {
		if n, ok := names[id]; ok && n != "" {
			return n
		}
		return id
	}

	parts := make([]string, 0, len(marriages))
	for _, m := range marriages {
		parts = append(parts, fmt.Sprintf("%s & %s (ID: %s)", name(m.Spouse1ID), name(m.Spouse2ID), m.ID))
	}
	return fmt.Sprintf("Found %d marriages: %s", len(marriages), strings.Join(parts, ", ")), nil
}

func (d *Dispatcher) addPerson(ctx context.Context, raw map[string]any) (string, error) {
	var args AddPersonArgs
	if err := decodeArgs(raw, &args); err != nil {
		return "", err
	}
	in := args.toNewPerson()

	// The count is read at dispatch time so that, within one batch, only the
	// first person added to an empty tree becomes the home person.
	n, err := d.store.CountPeople(ctx)
	if err != nil {
		return "", err
	}
	in.IsHomePerson = n == 0

	p, err := d.store.AddPerson(ctx, in)
	if err != nil {
		return "", err
	}
	d.afterWrite(ctx)
	return fmt.Sprintf("Successfully added %s %s with ID %s.", p.FirstName, p.LastName, p.ID), nil
}

func (d *Dispatcher) updatePerson(ctx context.Context, raw map[string]any) (string, error) {
	var args UpdatePersonArgs
	if err := decodeArgs(raw, &args); err != nil {
		return "", err
	}
	p, err := d.store.UpdatePerson(ctx, args.PersonID, args.Updates.toUpdate())
	if err != nil {
		return "", err
	}
	d.afterWrite(ctx)
	return fmt.Sprintf("Successfully updated %s %s.", p.FirstName, p.LastName), nil
}

// afterWrite runs the refresh callback. The write itself already succeeded, so
// a failed refresh is logged and not reported as a tool error.
func (d *Dispatcher) afterWrite(ctx context.Context) {
	if d.refresh == nil {
		return
	}
	if err := d.refresh(ctx); err != nil {
		d.log.Warn().Err(err).Msg("refresh after tool write failed")
	}
}
