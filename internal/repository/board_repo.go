package repository

import (
	"context"
	"fmt"
	"net/http"
	"recurring-card/config"
	"recurring-card/internal/contract"
	"recurring-card/internal/dto"
	"recurring-card/pkg/cache"
	"recurring-card/pkg/common"
	"recurring-card/pkg/httpclient"
	"recurring-card/pkg/logger"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const cardFields = "id,name,desc,idList,idBoard,closed,due,url,idMembers,idLabels"

type BoardRepository interface {
	contract.CardService
	ListMembers(ctx context.Context, boardID string) ([]dto.BoardMember, error)
}

// boardRepository talks to a Trello-compatible REST API.
type boardRepository struct {
	cfg            *config.Config
	log            *logger.Logger
	httpClient     httpclient.HTTPClient
	inmemoryCache  cache.Cache
	requestLimiter *rate.Limiter
}

func NewBoardRepository(cfg *config.Config, log *logger.Logger, inmemoryCache cache.Cache) BoardRepository {
	client := httpclient.New(cfg.Board.BaseURL, cfg.Board.Timeout, httpclient.WithQueryParams(map[string]string{
		"key":   cfg.Board.APIKey,
		"token": cfg.Board.Token,
	}))
	return newBoardRepository(cfg, log, inmemoryCache, client)
}

func newBoardRepository(cfg *config.Config, log *logger.Logger, inmemoryCache cache.Cache, client httpclient.HTTPClient) *boardRepository {
	perSecond := cfg.Board.MaxRequestPerSecond
	if perSecond <= 0 {
		perSecond = 8
	}
	return &boardRepository{
		cfg:            cfg,
		log:            log,
		httpClient:     client,
		inmemoryCache:  inmemoryCache,
		requestLimiter: rate.NewLimiter(rate.Limit(perSecond), perSecond),
	}
}

func (r *boardRepository) GetCard(ctx context.Context, id string) (*dto.Card, error) {
	if err := r.wait(ctx, "get card"); err != nil {
		return nil, err
	}

	var card dto.Card
	resp, err := r.httpClient.Get(ctx, "/cards/"+id, map[string]string{"fields": cardFields}, nil, &card)
	if err != nil {
		return nil, &contract.TransientError{Op: "get card", StatusCode: resp.StatusCode, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusBadRequest:
		return nil, fmt.Errorf("%w: %s", contract.ErrCardNotFound, id)
	case resp.StatusCode != http.StatusOK:
		return nil, &contract.TransientError{Op: "get card", StatusCode: resp.StatusCode, Body: string(resp.Body)}
	}
	return &card, nil
}

func (r *boardRepository) CreateCard(ctx context.Context, spec dto.CardSpec, settings dto.BoardSettings) (*dto.Card, error) {
	if settings.ListID == "" {
		return nil, &contract.ValidationPreconditionError{Reason: "no target list configured"}
	}
	if len(spec.Assignees) == 0 {
		return nil, &contract.ValidationPreconditionError{Reason: "no assignees configured"}
	}
	memberIDs, err := r.resolveAssignees(ctx, settings.BoardID, spec.Assignees)
	if err != nil {
		return nil, err
	}

	if err := r.wait(ctx, "create card"); err != nil {
		return nil, err
	}

	body := map[string]interface{}{
		"name":      spec.Title,
		"desc":      spec.Description,
		"idList":    settings.ListID,
		"due":       spec.Due.UTC().Format(time.RFC3339),
		"idMembers": strings.Join(memberIDs, ","),
		"pos":       "bottom",
	}
	if len(spec.Labels) > 0 {
		body["idLabels"] = strings.Join(spec.Labels, ",")
	}

	var card dto.Card
	resp, err := r.httpClient.Post(ctx, "/cards", body, nil, &card)
	if err != nil {
		return nil, &contract.TransientError{Op: "create card", StatusCode: resp.StatusCode, Err: err}
	}
	switch {
	case resp.StatusCode == http.StatusBadRequest,
		resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusNotFound:
		return nil, &contract.ValidationPreconditionError{
			Reason: fmt.Sprintf("board rejected card (status %d): %s", resp.StatusCode, string(resp.Body)),
		}
	case resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated:
		return nil, &contract.TransientError{Op: "create card", StatusCode: resp.StatusCode, Body: string(resp.Body)}
	}

	if len(spec.Checklist) > 0 {
		if err := r.addChecklist(ctx, card.ID, spec.Checklist); err != nil {
			r.log.WarnContext(ctx, "Card created without complete checklist",
				logger.StringField("card_id", card.ID),
				logger.ErrorField(err),
			)
		}
	}
	return &card, nil
}

// resolveAssignees maps member ids or usernames to board member ids.
func (r *boardRepository) resolveAssignees(ctx context.Context, boardID string, assignees []string) ([]string, error) {
	if boardID == "" {
		return nil, &contract.ValidationPreconditionError{Reason: "no board configured"}
	}
	members, err := r.ListMembers(ctx, boardID)
	if err != nil {
		return nil, err
	}

	byKey := make(map[string]string, len(members)*2)
	for _, m := range members {
		byKey[m.ID] = m.ID
		byKey[strings.ToLower(m.Username)] = m.ID
	}

	ids := make([]string, 0, len(assignees))
	for _, a := range assignees {
		id, ok := byKey[a]
		if !ok {
			id, ok = byKey[strings.ToLower(strings.TrimPrefix(a, "@"))]
		}
		if !ok {
			return nil, &contract.ValidationPreconditionError{Reason: fmt.Sprintf("assignee %q is not a member of board %s", a, boardID)}
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *boardRepository) ListMembers(ctx context.Context, boardID string) ([]dto.BoardMember, error) {
	key := fmt.Sprintf(common.KEY_BOARD_MEMBERS, boardID)
	if members, found := cache.GetFromCache[[]dto.BoardMember](r.inmemoryCache, key); found {
		return members, nil
	}

	if err := r.wait(ctx, "list members"); err != nil {
		return nil, err
	}

	var members []dto.BoardMember
	resp, err := r.httpClient.Get(ctx, "/boards/"+boardID+"/members", map[string]string{"fields": "id,username,fullName"}, nil, &members)
	if err != nil {
		return nil, &contract.TransientError{Op: "list members", StatusCode: resp.StatusCode, Err: err}
	}
	switch {
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusBadRequest:
		return nil, &contract.ValidationPreconditionError{Reason: fmt.Sprintf("board %s not found", boardID)}
	case resp.StatusCode != http.StatusOK:
		return nil, &contract.TransientError{Op: "list members", StatusCode: resp.StatusCode, Body: string(resp.Body)}
	}

	r.inmemoryCache.Set(key, members, r.cfg.Cache.MemberExpDuration)
	return members, nil
}

func (r *boardRepository) addChecklist(ctx context.Context, cardID string, items []string) error {
	if err := r.wait(ctx, "create checklist"); err != nil {
		return err
	}
	var checklist dto.Checklist
	resp, err := r.httpClient.Post(ctx, "/checklists", map[string]string{"idCard": cardID, "name": "Checklist"}, nil, &checklist)
	if err != nil {
		return fmt.Errorf("failed to create checklist: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to create checklist: status %d: %s", resp.StatusCode, string(resp.Body))
	}

	for _, item := range items {
		if err := r.wait(ctx, "create check item"); err != nil {
			return err
		}
		resp, err := r.httpClient.Post(ctx, "/checklists/"+checklist.ID+"/checkItems", map[string]string{"name": item}, nil, nil)
		if err != nil {
			return fmt.Errorf("failed to add check item %q: %w", item, err)
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("failed to add check item %q: status %d", item, resp.StatusCode)
		}
	}
	return nil
}

func (r *boardRepository) wait(ctx context.Context, op string) error {
	if !r.requestLimiter.Allow() {
		r.log.DebugContext(ctx, "Board API request throttled", logger.StringField("op", op))
		if err := r.requestLimiter.Wait(ctx); err != nil {
			return &contract.TransientError{Op: op, Err: err}
		}
	}
	return nil
}
