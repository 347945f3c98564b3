package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Proctor ───────────────────────────────────────────────────────
	ErrWrongPassword   ErrCode = "WRONG_PROCTOR_PASSWORD"
	ErrProctorRequired ErrCode = "PROCTOR_PASSWORD_REQUIRED"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"
	ErrEmptyName      ErrCode = "STUDENT_NAME_REQUIRED"
	ErrUnknownField   ErrCode = "UNKNOWN_FIELD"
	ErrInvalidAnswer  ErrCode = "INVALID_ANSWER"

	// ─── Session ───────────────────────────────────────────────────────
	ErrSessionNotFound  ErrCode = "SESSION_NOT_FOUND"
	ErrWrongPhase       ErrCode = "WRONG_PHASE"
	ErrPairLocked       ErrCode = "PAIR_LOCKED"
	ErrNotCurrentPair   ErrCode = "NOT_CURRENT_PAIR"
	ErrAlreadySubmitted ErrCode = "ALREADY_SUBMITTED"
	ErrSubmitInFlight   ErrCode = "SUBMISSION_IN_PROGRESS"

	// ─── Submission ────────────────────────────────────────────────────
	ErrSubmissionFailed        ErrCode = "SUBMISSION_FAILED"
	ErrSubmissionNotConfigured ErrCode = "SUBMISSION_NOT_CONFIGURED"
	ErrArchiveDisabled         ErrCode = "ARCHIVE_DISABLED"

	// ─── Assets ────────────────────────────────────────────────────────
	ErrNotFound     ErrCode = "NOT_FOUND"
	ErrAssetMissing ErrCode = "ASSET_MISSING"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Proctor ───────────────────────────────────────────────────────
	case ErrWrongPassword:
		return "Kata sandi pengawas salah."
	case ErrProctorRequired:
		return "Kata sandi pengawas diperlukan."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validasi gagal. Silakan periksa masukan Anda."
	case ErrInvalidID:
		return "Format ID tidak valid."
	case ErrInvalidPayload:
		return "Payload permintaan tidak valid."
	case ErrEmptyName:
		return "Nama siswa wajib diisi."
	case ErrUnknownField:
		return "Kolom jawaban tidak dikenal."
	case ErrInvalidAnswer:
		return "Jawaban tidak sesuai dengan bentuk soal."

	// ─── Session ───────────────────────────────────────────────────────
	case ErrSessionNotFound:
		return "Sesi ujian tidak ditemukan."
	case ErrWrongPhase:
		return "Tindakan ini tidak tersedia pada tahap ujian saat ini."
	case ErrPairLocked:
		return "Bagian ini sudah dikunci. Jawaban tidak dapat diubah."
	case ErrNotCurrentPair:
		return "Bagian ini bukan bagian yang sedang dikerjakan."
	case ErrAlreadySubmitted:
		return "Jawaban sudah dikirim."
	case ErrSubmitInFlight:
		return "Pengiriman jawaban sedang diproses."

	// ─── Submission ────────────────────────────────────────────────────
	case ErrSubmissionFailed:
		return "Gagal mengirim jawaban. Silakan coba lagi atau unduh CSV."
	case ErrSubmissionNotConfigured:
		return "Tujuan pengiriman belum dikonfigurasi. Silakan unduh CSV."
	case ErrArchiveDisabled:
		return "Arsip pengiriman tidak aktif."

	// ─── Assets ────────────────────────────────────────────────────────
	case ErrNotFound:
		return "Sumber daya tidak ditemukan."
	case ErrAssetMissing:
		return "Berkas pendukung tidak tersedia. Ujian tetap dapat dilanjutkan."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Terlalu banyak permintaan. Silakan coba lagi nanti."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Terjadi kesalahan server internal."
	default:
		return "Terjadi kesalahan yang tidak terduga."
	}
}
