package store

// SortingCriteria selects the ordering of listing endpoints. Ties always
// break lexicographically on title.
type SortingCriteria int

const (
	SortDefault SortingCriteria = iota
	SortAlpha
	SortDuration
	SortInsertionDate
	SortLastModificationDate
	SortReleaseDate
	SortFileSize
	SortArtist
	SortPlayCount
	SortAlbum
)

func sortDirection(desc bool) string {
	if desc {
		return "DESC"
	}
	return "ASC"
}

// mediaOrderBy builds the ORDER BY clause for media listings.
func mediaOrderBy(sort SortingCriteria, desc bool) string {
	dir := sortDirection(desc)
	switch sort {
	case SortDuration:
		return " ORDER BY duration " + dir + ", title ASC"
	case SortInsertionDate:
		return " ORDER BY insertion_date " + dir + ", title ASC"
	case SortPlayCount:
		return " ORDER BY play_count " + dir + ", title ASC"
	case SortReleaseDate:
		return " ORDER BY insertion_date " + dir + ", title ASC"
	default:
		return " ORDER BY title " + dir
	}
}

// mediaOrderByPrefixed is mediaOrderBy with columns qualified by the
// "m" alias, for joined queries.
func mediaOrderByPrefixed(sort SortingCriteria, desc bool) string {
	dir := sortDirection(desc)
	switch sort {
	case SortDuration:
		return " ORDER BY m.duration " + dir + ", m.title ASC"
	case SortInsertionDate:
		return " ORDER BY m.insertion_date " + dir + ", m.title ASC"
	case SortPlayCount:
		return " ORDER BY m.play_count " + dir + ", m.title ASC"
	default:
		return " ORDER BY m.title " + dir
	}
}

// albumOrderBy builds the ORDER BY clause for album listings.
func albumOrderBy(sort SortingCriteria, desc bool) string {
	dir := sortDirection(desc)
	switch sort {
	case SortReleaseDate:
		return " ORDER BY ifnull(release_year, 0) " + dir + ", title ASC"
	case SortDuration:
		return " ORDER BY duration " + dir + ", title ASC"
	default:
		return " ORDER BY title " + dir
	}
}

// artistOrderBy builds the ORDER BY clause for artist listings.
func artistOrderBy(desc bool) string {
	return " ORDER BY name " + sortDirection(desc)
}
