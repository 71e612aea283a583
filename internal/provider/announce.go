package provider

import "github.com/google/uuid"

// Info is the EIP-6963 provider metadata carried in announceProvider
// window events.
type Info struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
	Icon string `json:"icon"`
	RDNS string `json:"rdns"`
}

// AnnouncementRecord pairs the provider with its discovery metadata; the
// embedding layer dispatches it on announceProvider and replays it on
// every requestProvider event.
type AnnouncementRecord struct {
	Info     Info      `json:"info"`
	Provider *Provider `json:"-"`
}

// NewAnnouncement builds the discovery record for p. The UUID is drawn
// fresh per widget instance, as the protocol requires.
func NewAnnouncement(p *Provider, name, icon, rdns string) AnnouncementRecord {
	return AnnouncementRecord{
		Info: Info{
			UUID: uuid.NewString(),
			Name: name,
			Icon: icon,
			RDNS: rdns,
		},
		Provider: p,
	}
}
