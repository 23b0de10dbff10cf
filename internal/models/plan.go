package models

import "time"

// Lernplan is the root of the topic hierarchy. A plan with Themenliste set
// carries no calendar binding and serves as a template or archival artifact.
type Lernplan struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Themenliste   bool           `json:"themenliste,omitempty"`
	Rechtsgebiete []Rechtsgebiet `json:"rechtsgebiete"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// Rechtsgebiet is a top-level subject area.
type Rechtsgebiet struct {
	ID                 string              `json:"id"`
	Name               string              `json:"name"`
	Unterrechtsgebiete []Unterrechtsgebiet `json:"unterrechtsgebiete"`
}

// Unterrechtsgebiet is a sub-area within a subject area.
type Unterrechtsgebiet struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Kapitel []Kapitel `json:"kapitel"`
}

// Kapitel groups Themen. Hidden chapters are synthetic containers produced
// by flattening and are not rendered by consumers.
type Kapitel struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Hidden bool    `json:"hidden,omitempty"`
	Themen []Thema `json:"themen"`
}

// Thema is a topic leaf that can itself be scheduled into a block.
type Thema struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	Completed        bool          `json:"completed"`
	Aufgaben         []Aufgabe     `json:"aufgaben"`
	ScheduledInBlock *ScheduleLink `json:"scheduledInBlock,omitempty"`
}

// Aufgabe is the smallest schedulable unit of the hierarchy.
type Aufgabe struct {
	ID               string        `json:"id"`
	Text             string        `json:"text"`
	Completed        bool          `json:"completed"`
	ScheduledInBlock *ScheduleLink `json:"scheduledInBlock,omitempty"`
}

func cloneLink(link *ScheduleLink) *ScheduleLink {
	if link == nil {
		return nil
	}
	out := *link
	return &out
}

// CloneLernplan returns a deep copy of a plan tree.
func CloneLernplan(p Lernplan) Lernplan {
	out := p
	out.Rechtsgebiete = make([]Rechtsgebiet, len(p.Rechtsgebiete))
	for i, rg := range p.Rechtsgebiete {
		copied := rg
		copied.Unterrechtsgebiete = make([]Unterrechtsgebiet, len(rg.Unterrechtsgebiete))
		for j, urg := range rg.Unterrechtsgebiete {
			copiedURG := urg
			copiedURG.Kapitel = make([]Kapitel, len(urg.Kapitel))
			for k, kap := range urg.Kapitel {
				copiedKap := kap
				copiedKap.Themen = make([]Thema, len(kap.Themen))
				for l, thema := range kap.Themen {
					copiedThema := thema
					copiedThema.ScheduledInBlock = cloneLink(thema.ScheduledInBlock)
					copiedThema.Aufgaben = make([]Aufgabe, len(thema.Aufgaben))
					for m, aufgabe := range thema.Aufgaben {
						copiedAufgabe := aufgabe
						copiedAufgabe.ScheduledInBlock = cloneLink(aufgabe.ScheduledInBlock)
						copiedThema.Aufgaben[m] = copiedAufgabe
					}
					copiedKap.Themen[l] = copiedThema
				}
				copiedURG.Kapitel[k] = copiedKap
			}
			copied.Unterrechtsgebiete[j] = copiedURG
		}
		out.Rechtsgebiete[i] = copied
	}
	return out
}
