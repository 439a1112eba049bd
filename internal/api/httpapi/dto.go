package httpapi

import (
	"time"

	"github.com/osa030/musikbox/internal/app/notification"
	"github.com/osa030/musikbox/internal/app/playback"
	"github.com/osa030/musikbox/internal/domain/playlist"
	"github.com/osa030/musikbox/internal/domain/track"
)

// Times on the wire are seconds as floats, like media element positions.

// TrackDTO is the wire form of a track.
type TrackDTO struct {
	ID       string  `json:"id,omitempty"`
	URL      string  `json:"url" validate:"required"`
	Title    string  `json:"title,omitempty"`
	Artist   string  `json:"artist,omitempty"`
	Album    string  `json:"album,omitempty"`
	Cover    string  `json:"cover,omitempty"`
	Duration float64 `json:"duration,omitempty" validate:"gte=0"` // seconds, 0 when unknown
	Source   string  `json:"source,omitempty"`
}

// ErrorDTO is the wire form of a playback fault.
type ErrorDTO struct {
	Kind     string    `json:"kind"`
	Code     int       `json:"code"`
	CodeName string    `json:"code_name"`
	Message  string    `json:"message"`
	Track    *TrackDTO `json:"track,omitempty"`
}

// StateDTO is the wire form of a playback state snapshot.
type StateDTO struct {
	Status       string    `json:"status"`
	Track        *TrackDTO `json:"track"`
	Index        int       `json:"index"`
	QueueLength  int       `json:"queue_length"`
	IsPlaying    bool      `json:"is_playing"`
	CurrentTime  float64   `json:"current_time"`
	Duration     float64   `json:"duration"`
	Volume       float64   `json:"volume"`
	IsShuffle    bool      `json:"is_shuffle"`
	RepeatMode   string    `json:"repeat_mode"`
	IsLoading    bool      `json:"is_loading"`
	Error        *ErrorDTO `json:"error"`
	HasTrack     bool      `json:"has_track"`
	IsQueueEmpty bool      `json:"is_queue_empty"`
	CanGoNext    bool      `json:"can_go_next"`
	CanGoPrev    bool      `json:"can_go_prev"`
}

// EventDTO is one message on the events stream.
type EventDTO struct {
	SequenceNo uint64    `json:"sequence_no"`
	Type       string    `json:"type"`
	At         time.Time `json:"at"`
	State      StateDTO  `json:"state"`
}

// QueueRequest replaces the queue with a source reference or inline tracks.
type QueueRequest struct {
	Ref        string     `json:"ref" validate:"required_without=Tracks"`
	Tracks     []TrackDTO `json:"tracks" validate:"dive"`
	StartIndex int        `json:"start_index"`
	Autoplay   bool       `json:"autoplay"`
}

// QueueResponse reports what a queue request admitted.
type QueueResponse struct {
	Source   string              `json:"source,omitempty"`
	Title    string              `json:"title,omitempty"`
	Accepted int                 `json:"accepted"`
	Rejected map[string]Rejected `json:"rejected,omitempty"`
	State    StateDTO            `json:"state"`
}

// Rejected counts the tracks a filter turned away.
type Rejected struct {
	Count   int    `json:"count"`
	Message string `json:"message"`
}

// TrackRequest plays an ad-hoc track outside the queue.
type TrackRequest struct {
	TrackDTO
	Autoplay *bool `json:"autoplay"`
}

// SeekRequest moves the playback position.
type SeekRequest struct {
	Position *float64 `json:"position" validate:"required"`
}

// VolumeRequest sets the volume.
type VolumeRequest struct {
	Volume *float64 `json:"volume" validate:"required"`
}

// ShuffleRequest sets shuffle; an empty body toggles it.
type ShuffleRequest struct {
	Enabled *bool `json:"enabled"`
}

// RepeatRequest sets the repeat mode; an empty body cycles it.
type RepeatRequest struct {
	Mode string `json:"mode" validate:"omitempty,oneof=off one all"`
}

// PageDTO is one page of a catalog listing.
type PageDTO[T any] struct {
	Items      []T `json:"items"`
	PageNumber int `json:"page_number"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
	PagesCount int `json:"pages_count"`
}

// PlaylistDTO is the wire form of a catalog playlist.
type PlaylistDTO struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Cover       string `json:"cover,omitempty"`
	Ref         string `json:"ref"` // Reference to pass to POST /api/queue
}

func seconds(d time.Duration) float64 {
	return d.Seconds()
}

func fromSeconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func toTrackDTO(t *track.Track) *TrackDTO {
	if t == nil {
		return nil
	}
	return &TrackDTO{
		ID:       t.ID,
		URL:      t.URL,
		Title:    t.Title,
		Artist:   t.Artist,
		Album:    t.Album,
		Cover:    t.Cover,
		Duration: seconds(t.Duration),
		Source:   t.Source,
	}
}

func (d TrackDTO) toTrack() track.Track {
	return track.Track{
		ID:       d.ID,
		URL:      d.URL,
		Title:    d.Title,
		Artist:   d.Artist,
		Album:    d.Album,
		Cover:    d.Cover,
		Duration: fromSeconds(d.Duration),
		Source:   d.Source,
	}
}

func toErrorDTO(e *playback.Error) *ErrorDTO {
	if e == nil {
		return nil
	}
	return &ErrorDTO{
		Kind:     string(e.Kind),
		Code:     int(e.Code),
		CodeName: e.Code.String(),
		Message:  e.Message,
		Track:    toTrackDTO(e.Track),
	}
}

func toStateDTO(s playback.State) StateDTO {
	return StateDTO{
		Status:       s.Status().String(),
		Track:        toTrackDTO(s.Track),
		Index:        s.Index,
		QueueLength:  s.QueueLength,
		IsPlaying:    s.IsPlaying,
		CurrentTime:  seconds(s.CurrentTime),
		Duration:     seconds(s.Duration),
		Volume:       s.Volume,
		IsShuffle:    s.IsShuffle,
		RepeatMode:   s.RepeatMode.String(),
		IsLoading:    s.IsLoading,
		Error:        toErrorDTO(s.Error),
		HasTrack:     s.HasTrack,
		IsQueueEmpty: s.IsQueueEmpty,
		CanGoNext:    s.CanGoNext,
		CanGoPrev:    s.CanGoPrev,
	}
}

func toEventDTO(n *notification.Notification) EventDTO {
	return EventDTO{
		SequenceNo: n.SequenceNo,
		Type:       n.Type.String(),
		At:         n.At,
		State:      toStateDTO(n.State),
	}
}

func toPlaylistDTO(p playlist.Playlist) PlaylistDTO {
	return PlaylistDTO{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Cover:       p.Cover,
		Ref:         "musicfun:playlist:" + p.ID,
	}
}

func toPageDTO[T, D any](p *playlist.Page[T], conv func(T) D) PageDTO[D] {
	items := make([]D, len(p.Items))
	for i, it := range p.Items {
		items[i] = conv(it)
	}
	return PageDTO[D]{
		Items:      items,
		PageNumber: p.PageNumber,
		PageSize:   p.PageSize,
		TotalCount: p.TotalCount,
		PagesCount: p.PagesCount,
	}
}
