package repository

import "errors"

// 見つからないを統一
var ErrNotFound = errors.New("not found")

// 一意制約違反
var ErrDuplicate = errors.New("duplicate")

// リトライで回復しうるDBエラー（デッドロック、直列化失敗、ロック待ちタイムアウト）
var ErrTransient = errors.New("transient storage failure")
