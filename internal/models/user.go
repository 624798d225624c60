// internal/models/user.go
package models

type Role string

const (
	RoleStudent        Role = "STUDENT"
	RoleCollegeTeacher Role = "COLLEGE_TEACHER"
	RoleSchoolTeacher  Role = "SCHOOL_TEACHER"
	RoleAdmin          Role = "ADMIN"
)

// User is the read-only view of a directory entry used by approvals and issuance.
type User struct {
	ID          string `json:"id"`
	RealName    string `json:"realName"`
	StudentNo   string `json:"studentNo,omitempty"`
	Role        Role   `json:"role"`
	CollegeID   string `json:"collegeId,omitempty"`
	CollegeName string `json:"collegeName,omitempty"`
	PublicKey   string `json:"-"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
}
