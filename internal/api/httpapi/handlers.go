package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/mux"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/musikbox/internal/app/playback"
	"github.com/osa030/musikbox/internal/app/source"
	"github.com/osa030/musikbox/internal/domain/playlist"
	"github.com/osa030/musikbox/internal/domain/track"
)

const maxBodyBytes = 1 << 20

// decode reads an optional JSON body into v and validates it.
// An empty body leaves v at its zero value.
func (s *Server) decode(r *http.Request, v any) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return errors.Wrap(err, "failed to read body")
	}
	if len(strings.TrimSpace(string(data))) > 0 {
		if err := json.Unmarshal(data, v); err != nil {
			return errors.Wrap(err, "invalid JSON body")
		}
	}
	if err := s.validate.Struct(v); err != nil {
		return errors.Wrap(err, "invalid request")
	}
	return nil
}

// command wraps a no-argument player operation.
func (s *Server) command(op func()) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		op()
		s.writeState(w)
	}
}

func (s *Server) writeState(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, toStateDTO(s.player.State()))
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.writeState(w)
}

func (s *Server) handleGetQueue(w http.ResponseWriter, r *http.Request) {
	queue := s.player.Queue()
	items := make([]*TrackDTO, len(queue))
	for i := range queue {
		items[i] = toTrackDTO(&queue[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{"tracks": items})
}

func (s *Server) handleLoadQueue(w http.ResponseWriter, r *http.Request) {
	var req QueueRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}

	resp := QueueResponse{}
	var tracks []track.Track
	var rejected map[string]int

	if len(req.Tracks) > 0 {
		tracks, rejected = s.admitInline(r, req.Tracks)
	} else {
		result, err := s.resolver.Resolve(r.Context(), req.Ref)
		switch {
		case errors.Is(err, source.ErrUnsupportedRef):
			writeError(w, http.StatusBadRequest, codeUnsupportedRef, err.Error())
			return
		case err != nil:
			zlog.Warn().Msgf("api: failed to resolve %s: %v", req.Ref, err)
			writeError(w, http.StatusBadGateway, codeSourceFailed, err.Error())
			return
		}
		tracks, rejected = result.Playlist.Tracks, result.Rejected
		resp.Source = result.Source
		resp.Title = result.Playlist.Title
	}

	resp.Accepted = len(tracks)
	resp.Rejected = s.rejections(rejected)
	if len(tracks) == 0 {
		resp.State = toStateDTO(s.player.State())
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}

	// The engine clamps the start index into the admitted queue.
	s.player.LoadQueue(tracks, req.StartIndex, req.Autoplay)
	resp.State = toStateDTO(s.player.State())
	writeJSON(w, http.StatusOK, resp)
}

// admitInline runs posted tracks through the admission filters in order.
func (s *Server) admitInline(r *http.Request, dtos []TrackDTO) ([]track.Track, map[string]int) {
	admitted := make([]track.Track, 0, len(dtos))
	rejected := make(map[string]int)
	for _, d := range dtos {
		t, result := s.resolver.Admit(r.Context(), d.toTrack(), admitted)
		if !result.Accepted {
			rejected[result.Code]++
			continue
		}
		admitted = append(admitted, t)
	}
	return admitted, rejected
}

func (s *Server) rejections(counts map[string]int) map[string]Rejected {
	if len(counts) == 0 {
		return nil
	}
	out := make(map[string]Rejected, len(counts))
	for code, n := range counts {
		out[code] = Rejected{Count: n, Message: s.message(code)}
	}
	return out
}

func (s *Server) message(code string) string {
	if s.config.Messages == nil {
		return code
	}
	return s.config.Messages.GetMessage(code)
}

func (s *Server) handleSetTrack(w http.ResponseWriter, r *http.Request) {
	var req TrackRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}

	t, result := s.resolver.Admit(r.Context(), req.toTrack(), s.player.Queue())
	if !result.Accepted {
		writeError(w, http.StatusUnprocessableEntity, result.Code, s.message(result.Code))
		return
	}

	autoplay := true
	if req.Autoplay != nil {
		autoplay = *req.Autoplay
	}
	s.player.SetTrack(t, autoplay)
	s.writeState(w)
}

func (s *Server) handleSetTrackByIndex(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid index")
		return
	}
	autoplay, err := boolParam(r.URL.Query(), "autoplay", true)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	// An index past the queue clears playback; the returned state shows it.
	s.player.SetTrackByIndex(index, autoplay)
	s.writeState(w)
}

// handleToggle starts the default track when nothing is loaded.
func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	if !s.player.State().HasTrack && s.config.DefaultTrack != nil {
		zlog.Debug().Msgf("api: nothing loaded, starting default track %s", s.config.DefaultTrack.Label())
		s.player.SetTrack(*s.config.DefaultTrack, true)
		s.writeState(w)
		return
	}
	s.player.TogglePlayPause()
	s.writeState(w)
}

func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	var req SeekRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	s.player.Seek(fromSeconds(*req.Position))
	s.writeState(w)
}

func (s *Server) handleVolume(w http.ResponseWriter, r *http.Request) {
	var req VolumeRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	s.player.SetVolume(*req.Volume)
	s.writeState(w)
}

func (s *Server) handleShuffle(w http.ResponseWriter, r *http.Request) {
	var req ShuffleRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	if req.Enabled == nil {
		s.player.ToggleShuffle()
	} else {
		s.player.SetShuffle(*req.Enabled)
	}
	s.writeState(w)
}

func (s *Server) handleRepeat(w http.ResponseWriter, r *http.Request) {
	var req RepeatRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	if req.Mode == "" {
		s.player.CycleRepeatMode()
		s.writeState(w)
		return
	}
	mode, err := playback.ParseRepeatMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	s.player.SetRepeatMode(mode)
	s.writeState(w)
}

func (s *Server) handleCatalogPlaylists(w http.ResponseWriter, r *http.Request) {
	if s.config.Catalog == nil {
		writeError(w, http.StatusServiceUnavailable, codeCatalogDisabled, "catalog is not configured")
		return
	}
	q, err := catalogQuery(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	page, err := s.config.Catalog.FetchPlaylists(r.Context(), q)
	if err != nil {
		writeError(w, http.StatusBadGateway, codeCatalogFailed, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toPageDTO(page, toPlaylistDTO))
}

func (s *Server) handleCatalogTracks(w http.ResponseWriter, r *http.Request) {
	if s.config.Catalog == nil {
		writeError(w, http.StatusServiceUnavailable, codeCatalogDisabled, "catalog is not configured")
		return
	}
	q, err := catalogQuery(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	page, err := s.config.Catalog.FetchTracks(r.Context(), q)
	if err != nil {
		writeError(w, http.StatusBadGateway, codeCatalogFailed, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toPageDTO(page, func(t track.Track) *TrackDTO { return toTrackDTO(&t) }))
}

// catalogQuery maps listing query parameters onto a catalog query.
func catalogQuery(v url.Values) (playlist.Query, error) {
	q := playlist.Query{
		Search:     v.Get("search"),
		SortBy:     v.Get("sort_by"),
		UserID:     v.Get("user_id"),
		TrackID:    v.Get("track_id"),
		PlaylistID: v.Get("playlist_id"),
		TagIDs:     v["tag"],
	}
	switch dir := v.Get("sort_direction"); dir {
	case "":
	case string(playlist.SortAsc), string(playlist.SortDesc):
		q.SortDirection = playlist.SortDirection(dir)
	default:
		return q, errors.Newf("invalid sort_direction %q", dir)
	}

	var err error
	if q.PageNumber, err = intParam(v, "page"); err != nil {
		return q, err
	}
	if q.PageSize, err = intParam(v, "page_size"); err != nil {
		return q, err
	}
	return q, nil
}

func intParam(v url.Values, name string) (int, error) {
	raw := v.Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.Newf("invalid %s %q", name, raw)
	}
	return n, nil
}

func boolParam(v url.Values, name string, def bool) (bool, error) {
	raw := v.Get(name)
	if raw == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return def, errors.Newf("invalid %s %q", name, raw)
	}
	return b, nil
}
