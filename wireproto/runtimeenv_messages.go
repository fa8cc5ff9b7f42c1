package wireproto

// RuntimeEnvRequest is the decoded payload the provisioner's HTTP client sends to the runtime-env
// agent: the serialized runtime env, the env config, and the job id.
type RuntimeEnvRequest struct {
	SerializedEnv string
	EnvConfig     []byte
	JobID         string
	SourceProcess string
}

// BuildRuntimeEnvRequest encodes r as the octet-stream body of a get_or_create_runtime_env POST.
func BuildRuntimeEnvRequest(r RuntimeEnvRequest) []byte {
	msg := Build().
		WithString(RuntimeEnvSerializedEnv, r.SerializedEnv).
		WithBytes(RuntimeEnvConfig, r.EnvConfig).
		WithBytes(RuntimeEnvJobID, []byte(r.JobID)).
		WithString(RuntimeEnvSourceProcess, r.SourceProcess)
	return msg.Marshal()
}

// RuntimeEnvReply is the decoded agent response.
type RuntimeEnvReply struct {
	OK                bool
	SerializedContext string
	ErrorMessage      string
}

// ParseRuntimeEnvReply decodes the agent's response body.
//
// A malformed body is itself treated as an agent failure rather than a transport error: the
// agent responded, it just didn't speak the expected wire format, so callers should stop
// retrying (a broken agent won't become well-formed on the next attempt).
func ParseRuntimeEnvReply(body []byte) (RuntimeEnvReply, error) {
	msg, err := Parse(body)
	if err != nil {
		return RuntimeEnvReply{}, err
	}
	status, _ := msg.GetVarint(RuntimeEnvReplyStatus)
	ctx, _ := msg.GetString(RuntimeEnvReplySerializedContext)
	errMsg, _ := msg.GetString(RuntimeEnvReplyErrorMessage)
	return RuntimeEnvReply{
		OK:                status == RuntimeEnvStatusOK,
		SerializedContext: ctx,
		ErrorMessage:      errMsg,
	}, nil
}
