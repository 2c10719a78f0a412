// package.go — метаданные пакета (бинарного артефакта) из Package Service.
package model

// PackageInfo — метаданные загруженного пакета.
// Шлюз не меняет их после получения, поэтому запись можно кэшировать.
type PackageInfo struct {
	// ID — идентификатор пакета
	ID string `json:"id"`
	// VersionID — идентификатор версии объекта в хранилище
	VersionID string `json:"versionId"`
	// MD5 — контрольная сумма содержимого
	MD5 string `json:"md5"`
	// Size — размер в байтах
	Size int64 `json:"size"`
	// FileName — оригинальное имя файла
	FileName string `json:"fileName"`
	// UserID — владелец пакета
	UserID string `json:"userId"`
}
