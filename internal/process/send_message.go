package process

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/talmora/rialto/internal/model"
	"github.com/talmora/rialto/internal/narrative"
	"github.com/talmora/rialto/internal/store"
)

// SendMessage resolves a social encounter between two citizens. The words
// exchanged come from the narrative service when it is available; either
// way both parties gain a little influence from being seen in company.
type SendMessage struct{}

func (p *SendMessage) Type() string { return TypeSendMessage }

// encounterParams is the typed decode of the activity's notes parameters.
type encounterParams struct {
	Recipient string
	Topic     string
}

func (p *SendMessage) Process(ctx context.Context, pc *ProcCtx, tx *sqlx.Tx, act *model.Activity) error {
	params, err := decodeEncounter(act)
	if err != nil {
		return err
	}
	sender, err := store.GetCitizen(tx, act.Citizen)
	if err != nil {
		return err
	}
	recipient, err := store.GetCitizen(tx, params.Recipient)
	if err != nil {
		return err
	}

	if err := store.AdjustInfluence(tx, sender.Username, 1); err != nil {
		return err
	}
	if err := store.AdjustInfluence(tx, recipient.Username, 1); err != nil {
		return err
	}

	exchange := narrative.Encounter(ctx, pc.Narrative, sender.Username, recipient.Username, params.Topic)
	return store.AppendActivityNote(tx, act.ID, exchange)
}

// decodeEncounter reads the "recipient:" and "topic:" lines from the
// activity's notes.
func decodeEncounter(act *model.Activity) (encounterParams, error) {
	var params encounterParams
	for _, line := range strings.Split(act.Notes, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		switch strings.TrimSpace(strings.ToLower(key)) {
		case "recipient":
			params.Recipient = strings.TrimSpace(value)
		case "topic":
			params.Topic = strings.TrimSpace(value)
		}
	}
	if params.Recipient == "" {
		return params, fmt.Errorf("activity %s names no message recipient", act.ID)
	}
	if params.Topic == "" {
		params.Topic = "the day's affairs"
	}
	return params, nil
}
