package dataset

// AppointmentRow is one row of the appointments (marcacao) export
type AppointmentRow struct {
	PatientID            *string `parquet:"paciente_id,optional"`
	RequestedAt          *string `parquet:"data_solicitacao,optional"`
	ScheduledAt          *string `parquet:"data_marcacao,optional"`
	RequestingFacilityID *string `parquet:"unidade_solicitante_id_cnes,optional"`
	ExecutingFacilityID  *string `parquet:"unidade_executante_id_cnes,optional"`
	ProcedureCode        *string `parquet:"procedimento_sisreg_id,optional"`
	DiagnosisCode        *string `parquet:"cid_agendado_id,optional"`
	PatientSex           *string `parquet:"paciente_sexo,optional"`
	PatientAgeBand       *string `parquet:"paciente_faixa_etaria,optional"`
	RiskFlag             *string `parquet:"solicitacao_risco,optional"`
	Status               *string `parquet:"solicitacao_status,optional"`
}

// FacilitySnapshotRow is one monthly facility snapshot (unidade_historico)
type FacilitySnapshotRow struct {
	FacilityID *string  `parquet:"unidade_id_cnes,optional"`
	Latitude   *float64 `parquet:"unidade_latitude,optional"`
	Longitude  *float64 `parquet:"unidade_longitude,optional"`
	Year       *int64   `parquet:"ano,optional"`
	Month      *int64   `parquet:"mes,optional"`
}

// ProcedureRow maps a procedure code to its specialty (procedimento)
type ProcedureRow struct {
	ProcedureCode *string `parquet:"procedimento_sisreg_id,optional"`
	Specialty     *string `parquet:"procedimento_especialidade,optional"`
}

// DiagnosisRow maps a diagnosis code to its category (cids)
type DiagnosisRow struct {
	DiagnosisCode *string `parquet:"cid_id,optional"`
	Category      *string `parquet:"cid,optional"`
}

// PatientProfileRow carries the socioeconomic attributes of a patient
type PatientProfileRow struct {
	PatientID       *string  `parquet:"paciente_id,optional"`
	HouseholdIncome *float64 `parquet:"renda_familiar,optional"`
}

func str(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func ptr[T any](v T) *T {
	return &v
}
