package voice

// EventKind 页面上报的事件类型
type EventKind int

const (
	RecognitionStarted EventKind = iota + 1
	ResultReady
	ErrorOccurred
	RecognitionEnded
	SynthesisStarted
	SynthesisEnded
	SynthesisFailed
	VoicesChanged

	// 以下为控制器内部事件
	evStart
	evStop
	evStopSpeaking
	evToggle
	evCancel
	evEscape
	evRecognitionTimeout
	evProcessingTimeout
	evErrorHoldElapsed
	evRemoteDone
	evFollowUp
)

func (k EventKind) String() string {
	switch k {
	case RecognitionStarted:
		return "recognition_started"
	case ResultReady:
		return "result_ready"
	case ErrorOccurred:
		return "error_occurred"
	case RecognitionEnded:
		return "recognition_ended"
	case SynthesisStarted:
		return "synthesis_started"
	case SynthesisEnded:
		return "synthesis_ended"
	case SynthesisFailed:
		return "synthesis_failed"
	case VoicesChanged:
		return "voices_changed"
	default:
		return "internal"
	}
}

// stops reports commands that only ever move the controller towards Idle.
func (k EventKind) stops() bool {
	switch k {
	case evStop, evStopSpeaking, evCancel, evEscape:
		return true
	}
	return false
}

func (k EventKind) external() bool {
	return k >= RecognitionStarted && k <= VoicesChanged
}

// Event is one asynchronous input for the dispatcher.
// Attempt carries the recognition attempt id for recognition events and the
// utterance id for synthesis events; events for a superseded id are ignored.
type Event struct {
	Kind       EventKind
	Attempt    string
	Transcript string
	Confidence float64
	Error      string
	Voices     []Voice

	// internal payloads
	gen    uint64
	seq    uint64
	result *Result
	err    error
	reason string
}

// Recognition error codes reported by the page.
const (
	ErrNoSpeech           = "no-speech"
	ErrAudioCapture       = "audio-capture"
	ErrNotAllowed         = "not-allowed"
	ErrNetwork            = "network"
	ErrServiceNotAllowed  = "service-not-allowed"
	ErrAborted            = "aborted"
	ErrLanguageNotSupport = "language-not-supported"
)

// RecognitionErrorMessage returns the user facing text for a recognizer error code.
func RecognitionErrorMessage(code string) string {
	switch code {
	case ErrNoSpeech:
		return "No se detectó voz. Intenta de nuevo."
	case ErrAudioCapture:
		return "No se pudo acceder al micrófono."
	case ErrNotAllowed:
		return "Permiso denegado. Activa el micrófono en la configuración."
	case ErrNetwork:
		return "Error de red. Verifica tu conexión."
	case ErrServiceNotAllowed:
		return "El servicio de reconocimiento de voz no está disponible."
	case ErrLanguageNotSupport:
		return "El idioma configurado no está soportado por el reconocimiento de voz."
	case ErrAborted:
		return "Reconocimiento cancelado."
	default:
		return "Error desconocido"
	}
}
