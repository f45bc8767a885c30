package redis

import "strconv"

// keyBuilder produces namespaced Redis keys per entity kind. Keeping the
// formatting in one place prevents collisions across entity families.
type keyBuilder struct{}

func (keyBuilder) settings(chatID int64) string {
	return "mod_settings:" + strconv.FormatInt(chatID, 10)
}

func (keyBuilder) flood(chatID, userID int64) string {
	return "flood_ts:" + strconv.FormatInt(chatID, 10) + ":" + strconv.FormatInt(userID, 10)
}

func (keyBuilder) join(chatID, userID int64) string {
	return "user_join:" + strconv.FormatInt(chatID, 10) + ":" + strconv.FormatInt(userID, 10)
}

func (keyBuilder) warns(chatID, userID int64) string {
	return "warns:" + strconv.FormatInt(chatID, 10) + ":" + strconv.FormatInt(userID, 10)
}

func (keyBuilder) modlog(chatID int64) string {
	return "modlog:" + strconv.FormatInt(chatID, 10)
}

func (keyBuilder) challenge(chatID, userID int64) string {
	return "captcha:" + strconv.FormatInt(chatID, 10) + ":" + strconv.FormatInt(userID, 10)
}
