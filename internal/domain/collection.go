package domain

// Collection is the pair of record sets a collaborator returns. It is a value:
// consumers replace it wholesale and never mutate it in place.
type Collection struct {
	Articles []Article `json:"articles"`
	Tags     []Tag     `json:"tags"`
}

// Empty reports whether the collection has no articles.
func (c Collection) Empty() bool {
	return len(c.Articles) == 0
}

// Article looks up an article by ID.
func (c Collection) Article(id string) (Article, bool) {
	for _, a := range c.Articles {
		if a.ID == id {
			return a, true
		}
	}
	return Article{}, false
}
