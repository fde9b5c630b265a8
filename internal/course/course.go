package course

// Course is one tracked announcement feed.
//
// Name, Years and Semester are derived from Link once, in New, and stay fixed.
// Announcements is always the latest full snapshot, ascending by PubDate.
type Course struct {
	Link          string         `json:"link"`
	Name          string         `json:"name"`
	Years         string         `json:"years"`
	Semester      string         `json:"semester"`
	Announcements []Announcement `json:"announcements"`
}

// New validates link and builds a Course with no announcements.
func New(link string) (*Course, error) {
	li, err := Validate(link)
	if err != nil {
		return nil, err
	}
	return &Course{
		Link:          link,
		Name:          li.Name,
		Years:         li.Years,
		Semester:      li.Semester,
		Announcements: []Announcement{},
	}, nil
}

// Info returns the link parts, enough to rebuild the feed path.
func (c *Course) Info() LinkInfo {
	return LinkInfo{Name: c.Name, Years: c.Years, Semester: c.Semester}
}

// Update diffs fresh against the stored snapshot and replaces it.
func (c *Course) Update(fresh []Announcement) []Change {
	changes := Diff(c.Announcements, fresh)
	c.Replace(fresh)
	return changes
}

// Replace swaps the stored snapshot for fresh, sorted and deduplicated.
func (c *Course) Replace(fresh []Announcement) {
	c.Announcements = Sorted(fresh)
}

// Clone returns a deep copy.
func (c *Course) Clone() *Course {
	cp := *c
	cp.Announcements = append([]Announcement(nil), c.Announcements...)
	if cp.Announcements == nil {
		cp.Announcements = []Announcement{}
	}
	return &cp
}
