package server

import (
	"context"
	"encoding/json"
	"errors"
	"github.com/valyala/fastjson"
	"go.uber.org/zap"
	"io"
	"net/http"
	"social-backend/internal/likes"
	"social-backend/internal/mailbox"
	"social-backend/internal/members"
	"social-backend/internal/pagination"
	"social-backend/internal/presence"
	"social-backend/internal/storage"
	"strconv"
	"strings"
)

// Store is the persistence used by handlers; implemented by storage.Store and sqlite.Store
type Store interface {
	mailbox.Repository
	likes.Repository
	members.Repository
	CreateUser(ctx context.Context, username, knownAs string) (int64, error)
	TouchLastActive(ctx context.Context, id int64) error
}

type parsers struct {
	usersPool    fastjson.ParserPool
	messagesPool fastjson.ParserPool
	likesPool    fastjson.ParserPool
}

type handler struct {
	logger  *zap.SugaredLogger
	store   Store
	mailbox *mailbox.Service
	likes   *likes.Service
	members *members.Service
	hub     *presence.Hub
	paging  pagination.Config
	parsers parsers
}

func newHandler(logger *zap.SugaredLogger, store Store, hub *presence.Hub, paging pagination.Config) *handler {
	return &handler{
		logger:  logger,
		store:   store,
		mailbox: mailbox.NewService(logger, store),
		likes:   likes.NewService(logger, store),
		members: members.NewService(logger, store),
		hub:     hub,
		paging:  paging,
	}
}

// idField retrieves a positive integer id; a non-empty message describes a client error
func idField(v *fastjson.Value, field string) (int64, string) {
	if !v.Exists(field) {
		return 0, `Missing Field "` + field + `"`
	}

	id, err := v.Get(field).Int64()
	if err != nil {
		return 0, `Field "` + field + `" must be a 64-bit integer value`
	}

	if id < 1 {
		return 0, `Field "` + field + `" must be a valid id greater than zero`
	}

	return id, ""
}

// stringField retrieves a required non-blank string
func stringField(v *fastjson.Value, field string) (string, string) {
	if !v.Exists(field) {
		return "", `Missing Field "` + field + `"`
	}

	b, err := v.Get(field).StringBytes()
	if err != nil || len(strings.TrimSpace(string(b))) == 0 {
		return "", `Field "` + field + `" must be a string and have non-zero length`
	}

	return string(b), ""
}

// intField retrieves an optional integer, zero when absent or null
func intField(v *fastjson.Value, field string) (int, string) {
	fv := v.Get(field)
	if fv == nil || fv.Type() == fastjson.TypeNull {
		return 0, ""
	}

	n, err := fv.Int()
	if err != nil {
		return 0, `Field "` + field + `" must be an integer value`
	}

	return n, ""
}

// pageFields retrieves optional "page" and "page_size" and normalizes them
func (h *handler) pageFields(v *fastjson.Value) (pagination.Params, string) {
	page, msg := intField(v, "page")
	if msg != "" {
		return pagination.Params{}, msg
	}

	size, msg := intField(v, "page_size")
	if msg != "" {
		return pagination.Params{}, msg
	}

	return pagination.ClampParams(page, size, h.paging), ""
}

// fail writes the HTTP response for err and logs unexpected ones
func (h *handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, mailbox.ErrSelfMessage),
		errors.Is(err, mailbox.ErrUnknownRecipient),
		errors.Is(err, mailbox.ErrEmptyContent),
		errors.Is(err, likes.ErrSelfLike):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, storage.ErrUserExists):
		http.Error(w, "User already exists", http.StatusBadRequest)
	case errors.Is(err, mailbox.ErrNotFound),
		errors.Is(err, likes.ErrNotFound),
		errors.Is(err, members.ErrNotFound),
		errors.Is(err, storage.ErrUserNotExist):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, mailbox.ErrForbidden):
		http.Error(w, err.Error(), http.StatusForbidden)
	default:
		h.logger.Error(err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// respond marshals v and writes it with provided status
func (h *handler) respond(w http.ResponseWriter, status int, v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		h.logger.Error(err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(payload)
	if err != nil {
		h.logger.Errorf("writing marshaled data to ResponseWriter: %v", err)
	}
}

// respondPage writes p with its metadata duplicated in the "Pagination" header
func respondPage[T any](h *handler, w http.ResponseWriter, p pagination.Page[T]) {
	w.Header().Set("Pagination", p.Header().String())
	h.respond(w, http.StatusOK, p)
}

// touch records activity of the acting user; failures are only logged
func (h *handler) touch(ctx context.Context, userID int64) {
	if err := h.store.TouchLastActive(ctx, userID); err != nil && !errors.Is(err, storage.ErrUserNotExist) {
		h.logger.Warnf("touching last activity of user (id: %d): %v", userID, err)
	}
}

// actingUser loads the user with provided id
func (h *handler) actingUser(ctx context.Context, id int64) (storage.User, error) {
	u, err := h.store.UserByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotExist) {
			return storage.User{}, mailbox.ErrNotFound
		}
		return storage.User{}, err
	}
	return u, nil
}

// createUser handles HTTP requests on "/users/add" endpoint
func (h *handler) createUser(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	parser := h.parsers.usersPool.Get()
	defer h.parsers.usersPool.Put(parser)
	v, _ := parser.ParseBytes(body)

	username, msg := stringField(v, "username")
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}
	knownAs := string(v.GetStringBytes("known_as"))

	id, err := h.store.CreateUser(r.Context(), username, knownAs)
	if err != nil {
		h.fail(w, err)
		return
	}

	payload := []byte(`{"id":` + strconv.FormatInt(id, 10) + `}`)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, err = w.Write(payload)
	if err != nil {
		h.logger.Errorf("writing marshaled data to ResponseWriter: %v", err)
	}
}

// membersForUser handles HTTP requests on "/users/get" endpoint
func (h *handler) membersForUser(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	parser := h.parsers.usersPool.Get()
	defer h.parsers.usersPool.Put(parser)
	v, _ := parser.ParseBytes(body)

	userID, msg := idField(v, "user")
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	params, msg := h.pageFields(v)
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}
	order := members.ParseOrder(string(v.GetStringBytes("order_by")))

	if _, err := h.actingUser(r.Context(), userID); err != nil {
		h.fail(w, err)
		return
	}

	page, err := h.members.List(r.Context(), userID, order, params.PageNumber, params.PageSize)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.touch(r.Context(), userID)

	respondPage(h, w, page)
}

// memberByUsername handles HTTP requests on "/users/find" endpoint
func (h *handler) memberByUsername(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	parser := h.parsers.usersPool.Get()
	defer h.parsers.usersPool.Put(parser)
	v, _ := parser.ParseBytes(body)

	username, msg := stringField(v, "username")
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	u, err := h.members.Profile(r.Context(), username)
	if err != nil {
		h.fail(w, err)
		return
	}

	h.respond(w, http.StatusOK, u)
}

// createMessage handles HTTP requests on "/messages/add" endpoint
func (h *handler) createMessage(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	parser := h.parsers.messagesPool.Get()
	defer h.parsers.messagesPool.Put(parser)
	v, _ := parser.ParseBytes(body)

	senderID, msg := idField(v, "sender")
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	recipient, msg := stringField(v, "recipient")
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	if !v.Exists("content") {
		http.Error(w, `Missing Field "content"`, http.StatusBadRequest)
		return
	}
	content, err := v.Get("content").StringBytes()
	if err != nil {
		http.Error(w, `Field "content" must be a string`, http.StatusBadRequest)
		return
	}

	m, err := h.mailbox.SendTo(r.Context(), senderID, recipient, string(content))
	if err != nil {
		h.fail(w, err)
		return
	}
	h.touch(r.Context(), senderID)

	h.respond(w, http.StatusCreated, m)
}

// messagesForUser handles HTTP requests on "/messages/get" endpoint
func (h *handler) messagesForUser(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	parser := h.parsers.messagesPool.Get()
	defer h.parsers.messagesPool.Put(parser)
	v, _ := parser.ParseBytes(body)

	userID, msg := idField(v, "user")
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	params, msg := h.pageFields(v)
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}
	folder := mailbox.ParseFolder(string(v.GetStringBytes("container")))

	user, err := h.actingUser(r.Context(), userID)
	if err != nil {
		h.fail(w, err)
		return
	}

	page, err := h.mailbox.FetchMailbox(r.Context(), user.Username, folder, params.PageNumber, params.PageSize)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.touch(r.Context(), userID)

	respondPage(h, w, page)
}

// messageThread handles HTTP requests on "/messages/thread" endpoint
func (h *handler) messageThread(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	parser := h.parsers.messagesPool.Get()
	defer h.parsers.messagesPool.Put(parser)
	v, _ := parser.ParseBytes(body)

	userID, msg := idField(v, "user")
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	with, msg := stringField(v, "with")
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	user, err := h.actingUser(r.Context(), userID)
	if err != nil {
		h.fail(w, err)
		return
	}

	thread, err := h.mailbox.FetchThread(r.Context(), user.Username, with)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.touch(r.Context(), userID)

	h.respond(w, http.StatusOK, thread)
}

// deleteMessage handles HTTP requests on "/messages/delete" endpoint
func (h *handler) deleteMessage(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	parser := h.parsers.messagesPool.Get()
	defer h.parsers.messagesPool.Put(parser)
	v, _ := parser.ParseBytes(body)

	userID, msg := idField(v, "user")
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	messageID, msg := idField(v, "message")
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	user, err := h.actingUser(r.Context(), userID)
	if err != nil {
		h.fail(w, err)
		return
	}

	result, err := h.mailbox.Delete(r.Context(), messageID, user.Username)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.touch(r.Context(), userID)

	h.respond(w, http.StatusOK, result)
}

// toggleLike handles HTTP requests on "/likes/toggle" endpoint
func (h *handler) toggleLike(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	parser := h.parsers.likesPool.Get()
	defer h.parsers.likesPool.Put(parser)
	v, _ := parser.ParseBytes(body)

	userID, msg := idField(v, "user")
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	targetID, msg := idField(v, "target")
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	liked, err := h.likes.ToggleLike(r.Context(), userID, targetID)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.touch(r.Context(), userID)

	h.respond(w, http.StatusOK, struct {
		Liked bool `json:"liked"`
	}{liked})
}

// likedUsers handles HTTP requests on "/likes/get" endpoint
func (h *handler) likedUsers(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	parser := h.parsers.likesPool.Get()
	defer h.parsers.likesPool.Put(parser)
	v, _ := parser.ParseBytes(body)

	userID, msg := idField(v, "user")
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	params, msg := h.pageFields(v)
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}
	predicate := likes.ParsePredicate(string(v.GetStringBytes("predicate")))

	if _, err := h.actingUser(r.Context(), userID); err != nil {
		h.fail(w, err)
		return
	}

	page, err := h.likes.List(r.Context(), userID, predicate, params.PageNumber, params.PageSize)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.touch(r.Context(), userID)

	respondPage(h, w, page)
}

// likedIDs handles HTTP requests on "/likes/ids" endpoint
func (h *handler) likedIDs(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	parser := h.parsers.likesPool.Get()
	defer h.parsers.likesPool.Put(parser)
	v, _ := parser.ParseBytes(body)

	userID, msg := idField(v, "user")
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	ids, err := h.likes.LikedIDs(r.Context(), userID)
	if err != nil {
		h.fail(w, err)
		return
	}

	h.respond(w, http.StatusOK, ids)
}

// onlineUsers handles HTTP requests on "/presence/online" endpoint
func (h *handler) onlineUsers(w http.ResponseWriter, _ *http.Request) {
	h.respond(w, http.StatusOK, h.hub.Registry().Snapshot())
}
