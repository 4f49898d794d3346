package cdf

import "fmt"

// InstanceId identifies a data-modeling instance.
type InstanceId struct {
	Space      string `json:"space"`
	ExternalId string `json:"externalId"`
}

func (id InstanceId) String() string {
	return fmt.Sprintf("%s:%s", id.Space, id.ExternalId)
}

// ViewId identifies a data-modeling view.
type ViewId struct {
	Space      string `json:"space"`
	ExternalId string `json:"externalId"`
	Version    string `json:"version"`
}

func (id ViewId) String() string {
	return fmt.Sprintf("%s:%s/%s", id.Space, id.ExternalId, id.Version)
}

// viewReference is the wire form of a view reference inside instance sources.
type viewReference struct {
	Type       string `json:"type"`
	Space      string `json:"space"`
	ExternalId string `json:"externalId"`
	Version    string `json:"version"`
}

func (id ViewId) reference() viewReference {
	return viewReference{Type: "view", Space: id.Space, ExternalId: id.ExternalId, Version: id.Version}
}
